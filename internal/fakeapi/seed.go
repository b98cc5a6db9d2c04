package fakeapi

import (
	"github.com/pkg/errors"

	"campus/portal/internal/model"
)

// DevPassword is the password of every seeded account.
const DevPassword = "campus-dev-pass"

// Seed adds one account per role plus a welcome notice, so a fresh dev
// backend can be logged into straight away.
func Seed(store *Store) ([]model.Identity, error) {
	hash, err := HashPassword(DevPassword)
	if err != nil {
		return nil, errors.Wrap(err, "hashing seed password")
	}
	year := 2
	accounts := []model.Identity{
		{Role: model.RoleAdmin, Name: "Campus Admin", Email: "admin@campus.local", EmployeeID: defaultAdminID},
		{Role: model.RoleFaculty, Name: "Ravi Kumar", Email: "faculty@campus.local", Department: "CSE", EmployeeID: defaultFacultyIDs[0]},
		{Role: model.RoleStudent, Name: "Asha Reddy", Email: "student@campus.local", Department: "CSE", Year: &year, Section: "A", RollNumber: "24AK1A3001"},
	}
	out := make([]model.Identity, 0, len(accounts))
	for _, account := range accounts {
		created, err := store.CreateUser(account, hash)
		if err != nil {
			return nil, errors.Wrapf(err, "seeding %s", account.Email)
		}
		out = append(out, created)
	}
	store.AddNotice(model.Notice{
		Title:        "Welcome",
		Content:      "The campus portal is up.",
		PostedBy:     out[0].ID,
		PostedByName: out[0].Name,
		RoleTarget:   []model.Role{model.RoleStudent, model.RoleFaculty, model.RoleAdmin},
	})
	return out, nil
}
