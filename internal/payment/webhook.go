package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrBadSignature is returned when the recomputed webhook HMAC does not
// match the provided one. Verification failure must cause no side effects.
var ErrBadSignature = errors.New("webhook signature mismatch")

// hmacFieldOrder is the provider-documented concatenation order for webhook
// signature computation. Dotted names address nested objects.
var hmacFieldOrder = []string{
	"amount_cents",
	"created_at",
	"currency",
	"error_occured",
	"has_parent_transaction",
	"id",
	"integration_id",
	"is_3d_secure",
	"is_auth",
	"is_capture",
	"is_refunded",
	"is_standalone_payment",
	"is_voided",
	"order.id",
	"owner",
	"pending",
	"source_data.pan",
	"source_data.sub_type",
	"source_data.type",
	"success",
}

// Transaction is the subset of the webhook transaction object the bridge
// acts on. Everything else is passed through opaquely.
type Transaction struct {
	ID          int64  `json:"id"`
	Success     bool   `json:"success"`
	Pending     bool   `json:"pending"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Order       struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
}

// VerifyWebhook recomputes the HMAC-SHA512 signature over the webhook body's
// transaction object and compares it to the provided hex signature in
// constant time. On success it returns the parsed transaction.
func VerifyWebhook(secret, body []byte, provided string) (*Transaction, error) {
	objRaw, err := transactionObject(body)
	if err != nil {
		return nil, err
	}

	computed, err := ComputeSignature(secret, objRaw)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(provided))) != 1 {
		return nil, ErrBadSignature
	}

	var tx Transaction
	if err := json.Unmarshal(objRaw, &tx); err != nil {
		return nil, errors.Wrap(err, "parse transaction")
	}
	return &tx, nil
}

// ComputeSignature concatenates the documented fields of the transaction
// object in their fixed order and returns the hex HMAC-SHA512 digest.
//
// Signatures are computed over the values exactly as they appear on the
// wire: booleans as "true"/"false", numbers in their original lexical form.
// Decoding into Go types and re-rendering would corrupt values like
// "10.50" or large integers, so the raw JSON lexemes are extracted instead.
func ComputeSignature(secret, objRaw []byte) (string, error) {
	lexemes, err := fieldLexemes(objRaw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, field := range hmacFieldOrder {
		sb.WriteString(lexemes[field])
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// fieldLexemes walks the transaction object and records the wire-form value
// of every top-level field, plus the nested order and source_data fields the
// signature needs.
func fieldLexemes(objRaw []byte) (map[string]string, error) {
	lexemes := make(map[string]string, len(hmacFieldOrder))

	d := jx.DecodeBytes(objRaw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "order":
			return nested(d, key, lexemes)
		case "source_data":
			return nested(d, key, lexemes)
		default:
			v, err := valueLexeme(d)
			if err != nil {
				return errors.Wrapf(err, "field %s", key)
			}
			lexemes[key] = v
			return nil
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk transaction object")
	}
	return lexemes, nil
}

func nested(d *jx.Decoder, parent string, lexemes map[string]string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		v, err := valueLexeme(d)
		if err != nil {
			return errors.Wrapf(err, "field %s.%s", parent, key)
		}
		lexemes[parent+"."+key] = v
		return nil
	})
}

// valueLexeme consumes the next value and returns its signature form:
// strings unquoted, null as the empty string, everything else verbatim.
func valueLexeme(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		raw, err := d.Raw()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// transactionObject extracts the raw "obj" member from the webhook envelope.
func transactionObject(body []byte) ([]byte, error) {
	var objRaw []byte

	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "obj" {
			return d.Skip()
		}
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		objRaw = raw
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse webhook envelope")
	}
	if objRaw == nil {
		return nil, errors.New("webhook payload has no transaction object")
	}
	return objRaw, nil
}
