package domain

type UserProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Lastname  string `json:"lastname"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
}

// DeliveryAddress is the shipping address on file. Payment submission
// requires one.
type DeliveryAddress struct {
	Name        string `json:"name"`
	Lastname    string `json:"lastname"`
	Street      string `json:"street"`
	Housenumber string `json:"housenumber"`
	Zipcode     string `json:"zipcode"`
	County      string `json:"county"`
	Country     string `json:"country"`
}

type BillAddress struct {
	Name        string `json:"name"`
	Lastname    string `json:"lastname"`
	Street      string `json:"street"`
	Housenumber string `json:"housenumber"`
	Zipcode     string `json:"zipcode"`
	County      string `json:"county"`
	Country     string `json:"country"`
}
