package domain

// Portfolio groups positions under a user-chosen name. The ledger itself
// only ever refers to portfolios by id.
type Portfolio struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Broker identifies the institution an operation was executed through.
type Broker struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	CNPJ string `json:"cnpj,omitempty"`
}
