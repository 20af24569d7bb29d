package models

import (
	"fmt"
	"strings"
)

// StudentProfile is the student variant of the account profile.
type StudentProfile struct {
	Name           string   `bson:"name" json:"name"`
	RollNumber     string   `bson:"roll_number,omitempty" json:"roll_number,omitempty"`
	Institute      string   `bson:"institute" json:"institute"`
	Department     string   `bson:"department,omitempty" json:"department,omitempty"`
	GraduationYear int      `bson:"graduation_year,omitempty" json:"graduation_year,omitempty"`
	CGPA           float64  `bson:"cgpa,omitempty" json:"cgpa,omitempty"`
	Phone          string   `bson:"phone,omitempty" json:"phone,omitempty"`
	Skills         []string `bson:"skills,omitempty" json:"skills,omitempty"`
}

// CompanyProfile is the company variant of the account profile.
type CompanyProfile struct {
	CompanyName   string `bson:"company_name" json:"company_name"`
	Website       string `bson:"website,omitempty" json:"website,omitempty"`
	Industry      string `bson:"industry,omitempty" json:"industry,omitempty"`
	ContactPerson string `bson:"contact_person,omitempty" json:"contact_person,omitempty"`
	Phone         string `bson:"phone,omitempty" json:"phone,omitempty"`
	Description   string `bson:"description,omitempty" json:"description,omitempty"`
}

// TPOProfile is the training-and-placement officer variant of the account profile.
type TPOProfile struct {
	Name        string `bson:"name" json:"name"`
	Institute   string `bson:"institute" json:"institute"`
	Designation string `bson:"designation,omitempty" json:"designation,omitempty"`
	Phone       string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// ProfileInput carries caller-supplied profile fields. At most one variant may be set,
// and it must be the one selected by the account role.
type ProfileInput struct {
	Student *StudentProfile `json:"student,omitempty"`
	Company *CompanyProfile `json:"company,omitempty"`
	TPO     *TPOProfile     `json:"tpo,omitempty"`
}

func (p ProfileInput) variants() map[Role]bool {
	return map[Role]bool{
		RoleStudent: p.Student != nil,
		RoleCompany: p.Company != nil,
		RoleTPO:     p.TPO != nil,
	}
}

// ValidateProfile checks that only the role's variant is present and that its required
// fields are set. It returns the input with string fields trimmed.
func ValidateProfile(role Role, in ProfileInput) (ProfileInput, error) {
	for variant, set := range in.variants() {
		if set && variant != role {
			return ProfileInput{}, fmt.Errorf("%w: %s fields are not allowed for role %s", ErrValidation, variant, role)
		}
	}

	switch role {
	case RoleStudent:
		if in.Student == nil {
			return ProfileInput{}, missing("student.name")
		}
		s := *in.Student
		s.Name = strings.TrimSpace(s.Name)
		s.RollNumber = strings.TrimSpace(s.RollNumber)
		s.Institute = strings.TrimSpace(s.Institute)
		s.Department = strings.TrimSpace(s.Department)
		s.Phone = strings.TrimSpace(s.Phone)
		if s.Name == "" {
			return ProfileInput{}, missing("student.name")
		}
		if s.Institute == "" {
			return ProfileInput{}, missing("student.institute")
		}
		if s.CGPA < 0 || s.CGPA > 10 {
			return ProfileInput{}, fmt.Errorf("%w: student.cgpa must be between 0 and 10", ErrValidation)
		}
		if s.GraduationYear < 0 {
			return ProfileInput{}, fmt.Errorf("%w: student.graduation_year must be positive", ErrValidation)
		}
		return ProfileInput{Student: &s}, nil

	case RoleCompany:
		if in.Company == nil {
			return ProfileInput{}, missing("company.company_name")
		}
		c := *in.Company
		c.CompanyName = strings.TrimSpace(c.CompanyName)
		c.Website = strings.TrimSpace(c.Website)
		c.Industry = strings.TrimSpace(c.Industry)
		c.ContactPerson = strings.TrimSpace(c.ContactPerson)
		c.Phone = strings.TrimSpace(c.Phone)
		if c.CompanyName == "" {
			return ProfileInput{}, missing("company.company_name")
		}
		return ProfileInput{Company: &c}, nil

	case RoleTPO:
		if in.TPO == nil {
			return ProfileInput{}, missing("tpo.name")
		}
		t := *in.TPO
		t.Name = strings.TrimSpace(t.Name)
		t.Institute = strings.TrimSpace(t.Institute)
		t.Designation = strings.TrimSpace(t.Designation)
		t.Phone = strings.TrimSpace(t.Phone)
		if t.Name == "" {
			return ProfileInput{}, missing("tpo.name")
		}
		if t.Institute == "" {
			return ProfileInput{}, missing("tpo.institute")
		}
		return ProfileInput{TPO: &t}, nil

	case RoleSuperadmin:
		return ProfileInput{}, nil
	}
	return ProfileInput{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
}

// MergeProfile overlays a partial profile update on the account's current variant and
// validates the result. Blank or zero patch fields keep the stored value; a non-nil
// skills list replaces the stored one. The institute of a student or TPO is immutable
// once set.
func MergeProfile(a *Account, patch ProfileInput) (ProfileInput, error) {
	if a.Role == RoleSuperadmin {
		if patch.Student != nil || patch.Company != nil || patch.TPO != nil {
			return ProfileInput{}, fmt.Errorf("%w: superadmin accounts carry no profile", ErrValidation)
		}
		return ProfileInput{}, nil
	}
	for variant, set := range patch.variants() {
		if set && variant != a.Role {
			return ProfileInput{}, fmt.Errorf("%w: %s fields are not allowed for role %s", ErrValidation, variant, a.Role)
		}
	}
	if !patch.variants()[a.Role] {
		return ProfileInput{}, fmt.Errorf("%w: %s profile is required", ErrValidation, a.Role)
	}

	var merged ProfileInput
	switch a.Role {
	case RoleStudent:
		s := StudentProfile{}
		if a.Student != nil {
			s = *a.Student
		}
		p := *patch.Student
		if a.Student != nil {
			if err := keepInstitute(&p.Institute, a.Student.Institute); err != nil {
				return ProfileInput{}, err
			}
		}
		overlay(&s.Name, p.Name)
		overlay(&s.RollNumber, p.RollNumber)
		overlay(&s.Institute, p.Institute)
		overlay(&s.Department, p.Department)
		overlay(&s.Phone, p.Phone)
		if p.GraduationYear != 0 {
			s.GraduationYear = p.GraduationYear
		}
		if p.CGPA != 0 {
			s.CGPA = p.CGPA
		}
		if p.Skills != nil {
			s.Skills = append([]string(nil), p.Skills...)
		}
		merged.Student = &s

	case RoleCompany:
		c := CompanyProfile{}
		if a.Company != nil {
			c = *a.Company
		}
		p := *patch.Company
		overlay(&c.CompanyName, p.CompanyName)
		overlay(&c.Website, p.Website)
		overlay(&c.Industry, p.Industry)
		overlay(&c.ContactPerson, p.ContactPerson)
		overlay(&c.Phone, p.Phone)
		overlay(&c.Description, p.Description)
		merged.Company = &c

	case RoleTPO:
		t := TPOProfile{}
		if a.TPO != nil {
			t = *a.TPO
		}
		p := *patch.TPO
		if a.TPO != nil {
			if err := keepInstitute(&p.Institute, a.TPO.Institute); err != nil {
				return ProfileInput{}, err
			}
		}
		overlay(&t.Name, p.Name)
		overlay(&t.Institute, p.Institute)
		overlay(&t.Designation, p.Designation)
		overlay(&t.Phone, p.Phone)
		merged.TPO = &t
	}
	return ValidateProfile(a.Role, merged)
}

func overlay(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func keepInstitute(next *string, current string) error {
	n := strings.TrimSpace(*next)
	if n == "" {
		*next = current
		return nil
	}
	if !strings.EqualFold(n, current) {
		return fmt.Errorf("%w: institute cannot be changed", ErrValidation)
	}
	*next = current
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, field)
}
