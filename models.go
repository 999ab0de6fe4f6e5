package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthorityCategory groups authorities by the kind of principal they serve.
type AuthorityCategory = string

const (
	// CategoryCommonUser authorities every regular user receives
	CategoryCommonUser AuthorityCategory = "COMMON_USER"
	// CategoryOrganisation authorities for organisation administrators
	CategoryOrganisation AuthorityCategory = "ORGANISATION"
	// CategoryAdministrator authorities for application administrators
	CategoryAdministrator AuthorityCategory = "ADMINISTRATOR"
)

// User is the principal model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string           `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string           `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string           `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string           `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone          string           `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string           `bun:"password_hash" json:"password_hash,omitempty"`
	Enabled        bool             `bun:"enabled" json:"enabled"`
	Verified       bool             `bun:"verified" json:"verified"`
	TenancyID      *int64           `bun:"tenancy_id" json:"tenancy_id,omitempty"`
	Tenancy        *Tenancy         `bun:"rel:belongs-to,join:tenancy_id=id" json:"tenancy,omitempty"`
	Authorities    []*UserAuthority `bun:"rel:has-many,join:id=user_id" json:"authorities,omitempty"`
	LoginAttempts  int              `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time       `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time       `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time       `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time       `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins first and last name for notification contexts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthorityNames returns the names of every granted authority.
func (u *User) AuthorityNames() []string {
	if len(u.Authorities) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Authorities))
	for _, ua := range u.Authorities {
		if ua != nil {
			names = append(names, ua.Name)
		}
	}
	return names
}

// MarkVerified enables the user and flags the email as verified.
// Enabled and verified remain independent flags; both flip here because
// redeeming a registration hash proves control of the mailbox.
func (u *User) MarkVerified() *User {
	u.Enabled = true
	u.Verified = true
	return u
}

// MarkUnproven flags the user as unverified without disabling the account.
func (u *User) MarkUnproven() *User {
	u.Verified = false
	return u
}

// ChangePassword swaps the stored hash. The argument must already be hashed.
func (u *User) ChangePassword(passwordHash string) *User {
	u.PasswordHash = passwordHash
	return u
}

// Authority is a named role belonging to exactly one category
type Authority struct {
	bun.BaseModel `bun:"table:authorities,alias:aut"`
	ID            int64             `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Category      AuthorityCategory `bun:"category,notnull" json:"category,omitempty"`
	Name          string            `bun:"name,notnull,unique" json:"name,omitempty"`
}

// UserAuthority links a user to a granted authority. The name column is
// denormalized so grant checks avoid a join.
type UserAuthority struct {
	bun.BaseModel `bun:"table:user_authorities,alias:uaut"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	AuthorityID   int64      `bun:"authority_id,notnull" json:"authority_id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Authority     *Authority `bun:"rel:belongs-to,join:authority_id=id" json:"authority,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NewUserAuthority builds a grant for the given user and authority.
func NewUserAuthority(user *User, authority *Authority) *UserAuthority {
	return &UserAuthority{
		UserID:      user.ID,
		AuthorityID: authority.ID,
		Name:        authority.Name,
	}
}

// VerificationType is the purpose of a verification handshake
type VerificationType = string

const (
	// VerificationRegistration gates new account activation
	VerificationRegistration VerificationType = "REGISTRATION"
	// VerificationChangePassword gates password changes
	VerificationChangePassword VerificationType = "CHANGE_PASSWORD"
	// VerificationAdminRegistration gates administrator onboarding
	VerificationAdminRegistration VerificationType = "ADMIN_REGISTRATION"
	// VerificationNewOrganisationUser gates organisation member onboarding
	VerificationNewOrganisationUser VerificationType = "NEW_ORGANISATION_USER"
)

// VerificationStatus is the state of a verification record. Consumed records
// are deleted, so PENDING is the only persisted status.
type VerificationStatus = string

// VerificationPending is the only status a stored record can carry
const VerificationPending VerificationStatus = "PENDING"

// Verification is one outstanding handshake for an (email, type) pair
type Verification struct {
	bun.BaseModel `bun:"table:verifications,alias:vrf"`
	ID            uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string             `bun:"email,notnull" json:"email,omitempty"`
	Type          VerificationType   `bun:"type,notnull" json:"type,omitempty"`
	Status        VerificationStatus `bun:"status,notnull" json:"status,omitempty"`
	Hash          string             `bun:"hash,notnull" json:"hash,omitempty"`
	LastChange    *time.Time         `bun:"last_change,nullzero" json:"last_change,omitempty"`
	CreatedAt     *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Renew swaps in a freshly generated hash and bumps the change timestamp.
// Renewing in place is how a second Send for the same (email, type) avoids a
// duplicate row.
func (v *Verification) Renew(hash string, now time.Time) *Verification {
	v.Hash = hash
	v.Status = VerificationPending
	v.LastChange = &now
	return v
}

// Tenancy scopes users to an organisational unit
type Tenancy struct {
	bun.BaseModel `bun:"table:tenancies,alias:tcy"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Name          string `bun:"name,notnull,unique" json:"name,omitempty"`
}
