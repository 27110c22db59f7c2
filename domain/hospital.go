package domain

type Hospital struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"hospital_name" json:"name"`
	Address   string `db:"address" json:"address"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type BloodType struct {
	ID    int64  `db:"id" json:"id"`
	Label string `db:"blood_type" json:"label"`
}
