package payment

// Gateway-required fallbacks for billing fields the storefront may omit. The
// gateway rejects requests with empty required fields, so absent values are
// substituted rather than validated.
const (
	defaultField   = "NA"
	defaultCity    = "Cairo"
	defaultCountry = "EG"
)

// BillingData is the contact and address record passed through to the
// gateway's payment-key call. Pure pass-through: no invariants beyond field
// presence for the gateway's required fields.
type BillingData struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone_number"`
	Street     string `json:"street"`
	Building   string `json:"building"`
	Floor      string `json:"floor"`
	Apartment  string `json:"apartment"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// withDefaults returns a copy with every empty required field replaced by
// its gateway fallback.
func (b BillingData) withDefaults() BillingData {
	fallback := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fallback(&b.FirstName, defaultField)
	fallback(&b.LastName, defaultField)
	fallback(&b.Email, defaultField)
	fallback(&b.Phone, defaultField)
	fallback(&b.Street, defaultField)
	fallback(&b.Building, defaultField)
	fallback(&b.Floor, defaultField)
	fallback(&b.Apartment, defaultField)
	fallback(&b.City, defaultCity)
	fallback(&b.Country, defaultCountry)
	fallback(&b.PostalCode, defaultField)
	return b
}
