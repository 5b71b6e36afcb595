// Package models holds the persistent records shared by repositories and services.
package models

import "time"

// User is an account record. DeletedAt is set when the user is soft-deleted;
// repositories never return such rows.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	FullName     *string
	IsActive     bool
	IsSuperuser  bool
	IsVerified   bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsDeleted reports whether the user has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserPatch is a partial update of a User. A nil field is absent and leaves
// the stored value unchanged. Password carries the new plaintext; the
// service replaces it with a digest before anything is persisted.
type UserPatch struct {
	Email       *string
	FullName    *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
	IsVerified  *bool
}

// IsEmpty reports whether no field is present.
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.FullName == nil && p.Password == nil &&
		p.IsActive == nil && p.IsSuperuser == nil && p.IsVerified == nil
}

// TouchesPrivileges reports whether the patch changes account flags that
// only a superuser may set.
func (p UserPatch) TouchesPrivileges() bool {
	return p.IsActive != nil || p.IsSuperuser != nil || p.IsVerified != nil
}

// ApplyTo copies the present profile fields and flags onto u. Password is
// not applied here.
func (p UserPatch) ApplyTo(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		name := *p.FullName
		u.FullName = &name
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.IsSuperuser != nil {
		u.IsSuperuser = *p.IsSuperuser
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
}
