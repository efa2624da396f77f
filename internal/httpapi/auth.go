package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"savdopos/backend/internal/cache"
	"savdopos/backend/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthManager issues and verifies access tokens for employee PIN logins.
// The permission set for an employee is resolved once at login from their
// role and cached; requirePermission reads the cache with a fallback to the
// store so a restarted cache never locks everyone out.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	backend  AuthBackend
	perms    cache.PermissionCache

	// process-local fallback when no external cache is configured
	mu    sync.RWMutex
	local map[string][]domain.Permission
}

// AuthBackend is the slice of the service layer auth needs.
type AuthBackend interface {
	FindEmployeeByPIN(ctx context.Context, match func(pinHash string) bool) (domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (domain.Employee, error)
	RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error)
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Name   string `json:"name"`
	RoleID string `json:"role_id"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, backend AuthBackend, perms cache.PermissionCache) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if perms == nil {
		perms = cache.NoopPermissionCache{}
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		backend:  backend,
		perms:    perms,
		local:    make(map[string][]domain.Permission),
	}
}

// Login matches the PIN against active employees. bcrypt comparison happens
// here, once per candidate hash; the store never sees the raw PIN.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	pin := strings.TrimSpace(req.PIN)
	if pin == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	employee, err := a.backend.FindEmployeeByPIN(ctx, func(pinHash string) bool {
		return verifyPIN(pinHash, pin)
	})
	if err != nil {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	permissions, err := a.backend.RolePermissions(ctx, employee.RoleID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	a.storePermissions(ctx, employee.ID, permissions)

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(employee, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Employee:    employee,
		Permissions: permissions,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{EmployeeID: sub, Name: claims.Name, RoleID: claims.RoleID}, nil
}

// HasPermission answers whether the actor's capability set includes p,
// consulting the cache first and re-resolving from the store on a miss.
func (a *AuthManager) HasPermission(ctx context.Context, actor domain.Actor, p domain.Permission) bool {
	permissions, ok := a.loadPermissions(ctx, actor.EmployeeID)
	if !ok {
		employee, err := a.backend.GetEmployee(ctx, actor.EmployeeID)
		if err != nil || !employee.Active {
			return false
		}
		permissions, err = a.backend.RolePermissions(ctx, employee.RoleID)
		if err != nil {
			return false
		}
		a.storePermissions(ctx, actor.EmployeeID, permissions)
	}
	for _, have := range permissions {
		if have == p {
			return true
		}
	}
	return false
}

// InvalidatePermissions drops a cached capability set, called after role or
// employee changes so the next request re-resolves.
func (a *AuthManager) InvalidatePermissions(ctx context.Context, employeeID string) {
	_ = a.perms.Invalidate(ctx, employeeID)
	a.mu.Lock()
	delete(a.local, employeeID)
	a.mu.Unlock()
}

func (a *AuthManager) storePermissions(ctx context.Context, employeeID string, permissions []domain.Permission) {
	if err := a.perms.Set(ctx, employeeID, permissions, a.tokenTTL); err == nil {
		if _, isNoop := a.perms.(cache.NoopPermissionCache); !isNoop {
			return
		}
	}
	a.mu.Lock()
	a.local[employeeID] = permissions
	a.mu.Unlock()
}

func (a *AuthManager) loadPermissions(ctx context.Context, employeeID string) ([]domain.Permission, bool) {
	if permissions, ok, err := a.perms.Get(ctx, employeeID); err == nil && ok {
		return permissions, true
	}
	a.mu.RLock()
	permissions, ok := a.local[employeeID]
	a.mu.RUnlock()
	return permissions, ok
}

func (a *AuthManager) sign(employee domain.Employee, expiresAt time.Time) (string, error) {
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   employee.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "savdopos",
		},
		Name:   employee.Name,
		RoleID: employee.RoleID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPIN(stored string, input string) bool {
	if stored == "" || input == "" || !isBcryptHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func HashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"1234": true, "4321": true, "0000": true, "1111": true,
		"2222": true, "3333": true, "4444": true, "5555": true,
		"6666": true, "7777": true, "8888": true, "9999": true,
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return errors.New("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return errors.New("sequential PIN not allowed")
	}

	return nil
}
