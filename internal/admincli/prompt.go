package admincli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

const (
	DefaultEmail    = "admin@example.com"
	DefaultUsername = "admin"
	DefaultFullName = "Administrator"

	// maxPasswordAttempts bounds the password loop so closed input cannot spin forever.
	maxPasswordAttempts = 5
)

// ErrPasswordAttempts is returned when no acceptable password was entered.
var ErrPasswordAttempts = errors.New("too many failed password attempts")

// SuperuserCreator creates superuser accounts.
type SuperuserCreator interface {
	CreateSuperuser(ctx context.Context, in services.RegisterInput) (*models.User, error)
}

// Collect asks for the administrator's details. Empty answers take the
// defaults. The password is read twice and must pass
// services.ValidatePasswordStrength.
func Collect(reader *bufio.Reader, w io.Writer) (services.RegisterInput, error) {
	var in services.RegisterInput
	var err error

	if in.Email, err = GetTextWithDefault(reader, "Admin email", DefaultEmail, w); err != nil {
		return in, err
	}
	if in.Username, err = GetTextWithDefault(reader, "Admin username", DefaultUsername, w); err != nil {
		return in, err
	}
	fullName, err := GetTextWithDefault(reader, "Admin display name", DefaultFullName, w)
	if err != nil {
		return in, err
	}
	in.FullName = &fullName

	for range maxPasswordAttempts {
		pw, err := GetPassword("Admin password (min 8 characters)", w)
		if err != nil {
			return in, err
		}
		if err := services.ValidatePasswordStrength(pw); err != nil {
			fmt.Fprintln(w, err)
			continue
		}
		confirm, err := GetPassword("Confirm password", w)
		if err != nil {
			return in, err
		}
		if pw != confirm {
			fmt.Fprintln(w, "Passwords do not match, try again.")
			continue
		}
		in.Password = pw
		return in, nil
	}
	return in, ErrPasswordAttempts
}

// Run collects the administrator's details and creates the account. An
// existing email or username is reported to w and is not an error.
func Run(ctx context.Context, reader *bufio.Reader, w io.Writer, creator SuperuserCreator) error {
	in, err := Collect(reader, w)
	if err != nil {
		return err
	}

	u, err := creator.CreateSuperuser(ctx, in)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			fmt.Fprintf(w, "Admin user already exists: %v\n", err)
			return nil
		}
		return err
	}

	fmt.Fprintln(w, "Admin user created.")
	fmt.Fprintf(w, "  Email:    %s\n", u.Email)
	fmt.Fprintf(w, "  Username: %s\n", u.Username)
	if u.FullName != nil {
		fmt.Fprintf(w, "  Name:     %s\n", *u.FullName)
	}
	fmt.Fprintf(w, "  ID:       %s\n", u.ID)
	return nil
}
