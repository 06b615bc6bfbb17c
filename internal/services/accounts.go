package services

import (
	"context"
	"errors"
	"strings"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
)

// PatientRegistration is a self-service patient sign-up.
type PatientRegistration struct {
	Name        string
	Password    string
	DateOfBirth string
	Phone       string
	Email       string
	CardNumber  string
}

// AccountInput creates an account of any role from the admin console.
type AccountInput struct {
	Name          string
	LoginID       string
	Email         string
	Password      string
	Phone         string
	DateOfBirth   string
	CardNumber    string
	Specialty     string
	IsSystemAdmin bool
}

// AccountUpdate changes the non-nil fields of an account.
type AccountUpdate struct {
	Name          *string
	LoginID       *string
	Email         *string
	Password      *string
	Phone         *string
	DateOfBirth   *string
	CardNumber    *string
	Specialty     *string
	IsActive      *bool
	IsSystemAdmin *bool
}

// AccountService manages admins, doctors and patients.
type AccountService struct {
	deps *Deps
}

// RegisterPatient creates a patient account. Duplicate email or card number is rejected.
func (s *AccountService) RegisterPatient(ctx context.Context, in PatientRegistration) (*models.User, error) {
	user := &models.User{
		Name:        in.Name,
		Email:       models.StrPtr(strings.TrimSpace(in.Email)),
		Role:        models.RolePatient,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
		CardNumber:  models.StrPtr(strings.TrimSpace(in.CardNumber)),
		IsActive:    true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.checkUnique(ctx, tx, user); err != nil {
			return err
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return s.duplicate(err)
		}
		return s.deps.audit(ctx, tx, user.ID, "patient_registered", "patient", user.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Profile returns the signed-in user.
func (s *AccountService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.deps.Store.Users().Get(ctx, userID)
	if err != nil {
		return nil, missing(err, "User profile not found")
	}
	return user, nil
}

// UpdateProfile lets a user change their own name, contact details and password.
// Role, login id and suspension are not self-editable.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in AccountUpdate) (*models.User, error) {
	self := AccountUpdate{
		Name:        in.Name,
		Email:       in.Email,
		Password:    in.Password,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
	}
	var user *models.User
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		user, err = tx.Users().Get(ctx, userID)
		if err != nil {
			return missing(err, "User not found")
		}
		if err := s.apply(user, self); err != nil {
			return err
		}
		if err := s.checkUnique(ctx, tx, user); err != nil {
			return err
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return s.duplicate(err)
		}
		return s.deps.audit(ctx, tx, userID, "profile_updated", string(user.Role), userID, nil)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// List returns accounts of role.
func (s *AccountService) List(ctx context.Context, role models.Role, specialty string, skip, limit int) ([]models.User, error) {
	return s.deps.Store.Users().List(ctx, repository.UserFilter{
		Role:      role,
		Specialty: specialty,
		Skip:      skip,
		Limit:     limit,
	})
}

// PublicDoctors lists active doctors, optionally of one specialty.
func (s *AccountService) PublicDoctors(ctx context.Context, specialty string) ([]models.User, error) {
	doctors, err := s.List(ctx, models.RoleDoctor, specialty, 0, 0)
	if err != nil {
		return nil, err
	}
	out := doctors[:0]
	for _, d := range doctors {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

// Get returns the account id, which must have role.
func (s *AccountService) Get(ctx context.Context, role models.Role, id string) (*models.User, error) {
	return s.get(ctx, s.deps.Store, role, id)
}

func (s *AccountService) get(ctx context.Context, store repository.Store, role models.Role, id string) (*models.User, error) {
	user, err := store.Users().Get(ctx, id)
	if err != nil {
		return nil, missing(err, roleTitle(role)+" not found")
	}
	if user.Role != role {
		return nil, notFound(roleTitle(role) + " not found")
	}
	return user, nil
}

// Create adds an account of role on behalf of an admin.
func (s *AccountService) Create(ctx context.Context, actorID string, role models.Role, in AccountInput) (*models.User, error) {
	user := &models.User{
		Name:        in.Name,
		LoginID:     models.StrPtr(strings.TrimSpace(in.LoginID)),
		Email:       models.StrPtr(strings.TrimSpace(in.Email)),
		Role:        role,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
		IsActive:    true,
	}
	switch role {
	case models.RoleAdmin:
		user.IsSystemAdmin = in.IsSystemAdmin
	case models.RoleDoctor:
		user.Specialty = in.Specialty
	case models.RolePatient:
		user.CardNumber = models.StrPtr(strings.TrimSpace(in.CardNumber))
	}
	if err := s.requireLogin(user); err != nil {
		return nil, err
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}

	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if role == models.RoleAdmin && user.IsSystemAdmin {
			if err := s.requireSystemAdmin(ctx, tx, actorID); err != nil {
				return err
			}
		}
		if err := s.checkUnique(ctx, tx, user); err != nil {
			return err
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return s.duplicate(err)
		}
		return s.deps.audit(ctx, tx, actorID, string(role)+"_created", string(role), user.ID, map[string]interface{}{
			"name": user.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update changes an account of role on behalf of an admin.
func (s *AccountService) Update(ctx context.Context, actorID string, role models.Role, id string, in AccountUpdate) (*models.User, error) {
	var user *models.User
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		user, err = s.get(ctx, tx, role, id)
		if err != nil {
			return err
		}
		if role == models.RoleAdmin && (user.IsSystemAdmin || in.IsSystemAdmin != nil) {
			if err := s.requireSystemAdmin(ctx, tx, actorID); err != nil {
				return err
			}
		}
		if err := s.apply(user, in); err != nil {
			return err
		}
		if err := s.requireLogin(user); err != nil {
			return err
		}
		if err := s.checkUnique(ctx, tx, user); err != nil {
			return err
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return s.duplicate(err)
		}
		return s.deps.audit(ctx, tx, actorID, string(role)+"_updated", string(role), id, nil)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account of role. Admins cannot delete themselves, only a
// system admin can delete another system admin, and doctors with active
// appointments are kept.
func (s *AccountService) Delete(ctx context.Context, actorID string, role models.Role, id string) error {
	return s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		user, err := s.get(ctx, tx, role, id)
		if err != nil {
			return err
		}
		switch role {
		case models.RoleAdmin:
			if id == actorID {
				return invalid("Cannot delete your own account")
			}
			if user.IsSystemAdmin {
				if err := s.requireSystemAdmin(ctx, tx, actorID); err != nil {
					return err
				}
			}
		case models.RoleDoctor:
			active, err := tx.Appointments().List(ctx, repository.AppointmentFilter{
				DoctorID: id,
				Statuses: lifecycle.ActiveStatuses(),
			})
			if err != nil {
				return err
			}
			if len(active) > 0 {
				return conflict("Doctor has %d active appointments", len(active))
			}
		}
		if err := tx.Users().Delete(ctx, id); err != nil {
			return missing(err, roleTitle(role)+" not found")
		}
		return s.deps.audit(ctx, tx, actorID, string(role)+"_deleted", string(role), id, map[string]interface{}{
			"name": user.Name,
		})
	})
}

// Suspend blocks a patient's online check-in for the penalty period.
func (s *AccountService) Suspend(ctx context.Context, actorID, patientID string) (*models.User, error) {
	until, err := s.deps.penaltyEnd()
	if err != nil {
		return nil, err
	}
	return s.setSuspension(ctx, actorID, patientID, "patient_suspended", func(u *models.User) {
		u.SuspendedUntil = &until
	})
}

// Unsuspend lifts a patient's suspension.
func (s *AccountService) Unsuspend(ctx context.Context, actorID, patientID string) (*models.User, error) {
	return s.setSuspension(ctx, actorID, patientID, "patient_unsuspended", func(u *models.User) {
		u.SuspendedUntil = nil
	})
}

func (s *AccountService) setSuspension(ctx context.Context, actorID, patientID, action string, change func(*models.User)) (*models.User, error) {
	var user *models.User
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		user, err = s.get(ctx, tx, models.RolePatient, patientID)
		if err != nil {
			return err
		}
		change(user)
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		meta := map[string]interface{}{}
		if user.SuspendedUntil != nil {
			meta["suspended_until"] = user.SuspendedUntil.In(s.deps.Clinic.Location).Format(models.DateLayout)
		}
		return s.deps.audit(ctx, tx, actorID, action, "patient", patientID, meta)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Infractions lists a patient's recorded infractions, oldest first.
func (s *AccountService) Infractions(ctx context.Context, patientID string) ([]models.Infraction, error) {
	if _, err := s.get(ctx, s.deps.Store, models.RolePatient, patientID); err != nil {
		return nil, err
	}
	return s.deps.Store.Infractions().List(ctx, patientID, "", false)
}

// SeedFirstAdmin creates the system administrator when it does not exist yet.
func (s *AccountService) SeedFirstAdmin(ctx context.Context, username, password string) (*models.User, bool, error) {
	existing, err := s.deps.Store.Users().FindBy(ctx, repository.UserLoginID, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	admin := &models.User{
		Name:            "System Administrator",
		LoginID:         models.StrPtr(username),
		Role:            models.RoleAdmin,
		IsActive:        true,
		IsSystemAccount: true,
		IsSystemAdmin:   true,
	}
	if err := admin.SetPassword(password); err != nil {
		return nil, false, err
	}
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, admin); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, models.SystemActor, "admin_created", "admin", admin.ID, map[string]interface{}{
			"name": admin.Name,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

func (s *AccountService) apply(u *models.User, in AccountUpdate) error {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.LoginID != nil {
		u.LoginID = models.StrPtr(strings.TrimSpace(*in.LoginID))
	}
	if in.Email != nil {
		u.Email = models.StrPtr(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.DateOfBirth != nil {
		u.DateOfBirth = *in.DateOfBirth
	}
	if in.CardNumber != nil && u.Role == models.RolePatient {
		u.CardNumber = models.StrPtr(strings.TrimSpace(*in.CardNumber))
	}
	if in.Specialty != nil && u.Role == models.RoleDoctor {
		u.Specialty = *in.Specialty
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.IsSystemAdmin != nil && u.Role == models.RoleAdmin {
		u.IsSystemAdmin = *in.IsSystemAdmin
	}
	if in.Password != nil && *in.Password != "" {
		return u.SetPassword(*in.Password)
	}
	return nil
}

func (s *AccountService) requireLogin(u *models.User) error {
	if u.Role == models.RolePatient {
		if u.Email == nil {
			return invalid("Email is required for patients")
		}
		return nil
	}
	if u.LoginID == nil {
		return invalid("Login ID is required for %ss", u.Role)
	}
	return nil
}

func (s *AccountService) requireSystemAdmin(ctx context.Context, tx repository.Store, actorID string) error {
	actor, err := tx.Users().Get(ctx, actorID)
	if err != nil {
		return missing(err, "Admin not found")
	}
	if !actor.IsSystemAdmin {
		return forbidden("Only a system administrator can manage system administrators")
	}
	return nil
}

// checkUnique reports which unique key of u is already taken.
func (s *AccountService) checkUnique(ctx context.Context, tx repository.Store, u *models.User) error {
	keys := []struct {
		field repository.UserField
		value *string
		msg   string
	}{
		{repository.UserEmail, u.Email, "Email already registered"},
		{repository.UserLoginID, u.LoginID, "Login ID already in use"},
		{repository.UserCardNumber, u.CardNumber, "Card number already registered"},
	}
	for _, k := range keys {
		if k.value == nil {
			continue
		}
		other, err := tx.Users().FindBy(ctx, k.field, *k.value)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if other.ID != u.ID {
			return invalid("%s", k.msg)
		}
	}
	return nil
}

func (s *AccountService) duplicate(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return invalid("Account already exists")
	}
	return err
}

func roleTitle(r models.Role) string {
	switch r {
	case models.RoleAdmin:
		return "Admin"
	case models.RoleDoctor:
		return "Doctor"
	}
	return "Patient"
}
