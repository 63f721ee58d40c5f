package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mind-engage/ielts-practice/internal/rbac"
	"golang.org/x/crypto/bcrypt"
)

const (
	guestCookie   = "ielts_guest_id"
	guestIDPrefix = "guest|"
	guestTTL      = 30 * 24 * time.Hour

	// guestHashPrefix marks guest secrets so they never verify as passwords.
	guestHashPrefix = "guest:"
)

// CreateGuest makes a throwaway student account and returns it with the
// random secret that later proves ownership. Only a bcrypt hash of the
// secret is stored, so the account can never pass a password login.
func (u *Users) CreateGuest(ctx context.Context) (User, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return User{}, "", err
	}
	secret := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return User{}, "", err
	}
	sfx := strconv.FormatInt(u.now().UnixNano(), 36)
	usr := User{
		ID:        guestIDPrefix + uuid.NewString(),
		Username:  "guest-" + sfx[len(sfx)-6:] + "-" + uuid.NewString()[:4],
		Role:      rbac.RoleStudent,
		CreatedAt: u.now().Unix(),
	}
	_, err = u.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role, target_band, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, usr.ID, usr.Username, guestHashPrefix+string(hash), usr.Role, 0, usr.CreatedAt)
	if err != nil {
		return User{}, "", err
	}
	return usr, secret, nil
}

// AuthenticateGuest resumes a guest account. It fails for anything that is
// not a guest student holding the right secret, including guests that
// were later promoted.
func (u *Users) AuthenticateGuest(ctx context.Context, id, secret string) (User, error) {
	if !strings.HasPrefix(id, guestIDPrefix) || secret == "" {
		return User{}, ErrInvalidCredentials
	}
	var usr User
	var stored string
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, target_band, created_at FROM users WHERE id=$1`, id,
	).Scan(&usr.ID, &usr.Username, &stored, &usr.Role, &usr.TargetBand, &usr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	hash, ok := strings.CutPrefix(stored, guestHashPrefix)
	if !ok || usr.Role != rbac.RoleStudent {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

// guestCookieValue is "<user id>.<secret>"; neither part contains a dot.
func guestCookieValue(id, secret string) string { return id + "." + secret }

func parseGuestCookie(v string) (id, secret string) {
	i := strings.LastIndexByte(v, '.')
	if i < 0 {
		return "", ""
	}
	return v[:i], v[i+1:]
}

// POST /auth/guest
// Resumes the guest identity held in the cookie, or creates a new one, so
// a browser keeps its practice history without registering.
func GuestLoginHandler(a *AuthService, users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			usr    User
			secret string
		)
		if c, err := r.Cookie(guestCookie); err == nil {
			id, sec := parseGuestCookie(c.Value)
			if existing, err := users.AuthenticateGuest(r.Context(), id, sec); err == nil {
				usr, secret = existing, sec
			}
		}
		if usr.ID == "" {
			created, sec, err := users.CreateGuest(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			usr, secret = created, sec
		}
		http.SetCookie(w, &http.Cookie{
			Name:     guestCookie,
			Value:    guestCookieValue(usr.ID, secret),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(guestTTL),
		})
		writeToken(w, a, usr, http.StatusOK)
	}
}
