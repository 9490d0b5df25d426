package entity

type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Inactive bool    `json:"inactive"`
	PartyID  *string `json:"party,omitempty"`
}
