package model

type Customer struct {
	ID        string `db:"id" json:"id"`
	TenantID  string `db:"account_id" json:"account_id"`
	Name      string `db:"name" json:"name"`
	DocType   string `db:"doc_type" json:"doc_type"`
	DocNumber string `db:"doc_number" json:"doc_number"`
	Email     string `db:"email" json:"email"`
	Phone     string `db:"phone" json:"phone"`
}
