package models

import "time"

// AccountView is the redacted representation written on every external read path.
// It has no field for the password hash, the verification code or the reset token.
type AccountView struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name,omitempty"`
	DisplayName     string          `json:"display_name"`
	Role            Role            `json:"role"`
	IsVerified      bool            `json:"is_verified"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status"`
	AccountStatus   AccountStatus   `json:"account_status"`
	Student         *StudentProfile `json:"student,omitempty"`
	Company         *CompanyProfile `json:"company,omitempty"`
	TPO             *TPOProfile     `json:"tpo,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy      string          `json:"rejected_by,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	LastLogin       *time.Time      `json:"last_login,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// View serializes the account for clients.
func (a *Account) View() AccountView {
	v := AccountView{
		ID:              a.ID.Hex(),
		Email:           a.Email,
		Name:            a.Name,
		DisplayName:     a.DisplayName(),
		Role:            a.Role,
		IsVerified:      a.IsVerified,
		ApprovalStatus:  a.ApprovalStatus,
		AccountStatus:   a.Status(),
		ApprovedAt:      a.ApprovedAt,
		RejectedAt:      a.RejectedAt,
		RejectionReason: a.RejectionReason,
		LastLogin:       a.LastLogin,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.ApprovedBy != nil {
		v.ApprovedBy = a.ApprovedBy.Hex()
	}
	if a.RejectedBy != nil {
		v.RejectedBy = a.RejectedBy.Hex()
	}
	switch a.Role {
	case RoleStudent:
		v.Student = a.Student
	case RoleCompany:
		v.Company = a.Company
	case RoleTPO:
		v.TPO = a.TPO
	}
	return v
}

// Views serializes a list of accounts.
func Views(accounts []*Account) []AccountView {
	out := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.View())
	}
	return out
}
