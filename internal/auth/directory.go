package auth

import (
	"context"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

// IdentityDirectory mirrors admin decisions into the identity provider.
type IdentityDirectory interface {
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	SetAdmin(ctx context.Context, uid string, admin bool) error
	// IsAdmin reports whether the provider grants uid the admin claim.
	// An unknown uid is not an admin.
	IsAdmin(ctx context.Context, uid string) (bool, error)
	// Delete succeeds for an identity that no longer exists.
	Delete(ctx context.Context, uid string) error
}

// firebaseUsers is the subset of *auth.Client used by FirebaseDirectory.
type firebaseUsers interface {
	GetUser(ctx context.Context, uid string) (*fbauth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *fbauth.UserToUpdate) (*fbauth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// FirebaseDirectory applies changes through the Firebase Admin SDK.
type FirebaseDirectory struct {
	client firebaseUsers
	logger *zap.Logger
}

func NewFirebaseDirectory(client firebaseUsers, logger *zap.Logger) *FirebaseDirectory {
	return &FirebaseDirectory{client: client, logger: logger.Named("FirebaseDirectory")}
}

func (d *FirebaseDirectory) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	if _, err := d.client.UpdateUser(ctx, uid, (&fbauth.UserToUpdate{}).Disabled(disabled)); err != nil {
		return fmt.Errorf("firebase update user %s: %w", uid, err)
	}
	d.logger.Info("Identity disabled flag updated", zap.String("uid", uid), zap.Bool("disabled", disabled))
	return nil
}

func (d *FirebaseDirectory) SetAdmin(ctx context.Context, uid string, admin bool) error {
	if err := d.client.SetCustomUserClaims(ctx, uid, map[string]interface{}{adminClaim: admin}); err != nil {
		return fmt.Errorf("firebase set claims %s: %w", uid, err)
	}
	return nil
}

func (d *FirebaseDirectory) IsAdmin(ctx context.Context, uid string) (bool, error) {
	record, err := d.client.GetUser(ctx, uid)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("firebase get user %s: %w", uid, err)
	}
	admin, _ := record.CustomClaims[adminClaim].(bool)
	return admin, nil
}

func (d *FirebaseDirectory) Delete(ctx context.Context, uid string) error {
	if err := d.client.DeleteUser(ctx, uid); err != nil {
		if fbauth.IsUserNotFound(err) {
			d.logger.Warn("Identity already absent", zap.String("uid", uid))
			return nil
		}
		return fmt.Errorf("firebase delete user %s: %w", uid, err)
	}
	return nil
}

// LocalDirectory is used when tokens are issued locally. The users table is the
// only record, so there is nothing to mirror.
type LocalDirectory struct {
	logger *zap.Logger
}

func NewLocalDirectory(logger *zap.Logger) *LocalDirectory {
	return &LocalDirectory{logger: logger.Named("LocalDirectory")}
}

func (d *LocalDirectory) SetDisabled(_ context.Context, uid string, disabled bool) error {
	d.logger.Debug("Local identity disabled flag", zap.String("uid", uid), zap.Bool("disabled", disabled))
	return nil
}

func (d *LocalDirectory) SetAdmin(_ context.Context, uid string, admin bool) error {
	d.logger.Debug("Local identity admin flag", zap.String("uid", uid), zap.Bool("admin", admin))
	return nil
}

// IsAdmin is always false: locally issued admin rights live in the users table.
func (d *LocalDirectory) IsAdmin(context.Context, string) (bool, error) {
	return false, nil
}

func (d *LocalDirectory) Delete(_ context.Context, uid string) error {
	d.logger.Debug("Local identity removed", zap.String("uid", uid))
	return nil
}
