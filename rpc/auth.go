package rpc

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"excelsior/crypto"
)

const clockSkew = 2 * time.Minute

// authenticator resolves the caller identity from an HS256 bearer token whose
// subject is the caller's bech32 address.
type authenticator struct {
	secret   []byte
	issuer   string
	audience string
}

func newAuthenticator(secret []byte, issuer, audience string) *authenticator {
	return &authenticator{
		secret:   []byte(strings.TrimSpace(string(secret))),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
	}
}

func (a *authenticator) authenticate(r *http.Request) (crypto.Address, *RPCError) {
	if len(a.secret) == 0 {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "RPC authentication secret not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenString == "" {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	subject, err := a.parseSubject(tokenString)
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "invalid token", Data: err.Error()}
	}
	caller, err := crypto.DecodeAddress(subject)
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeUnauthorized, Message: "token subject is not an address", Data: err.Error()}
	}
	return caller, nil
}

func (a *authenticator) parseSubject(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("token invalid")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("subject required")
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for subject valid for ttl. It is the
// counterpart of the server's verification and is used by operator tooling.
func IssueToken(secret []byte, subject crypto.Address, issuer string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("rpc: signing secret required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

const (
	visitorTTL  = 5 * time.Minute
	maxVisitors = 10_000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter keeps one token bucket per caller. Buckets idle for longer
// than the ttl are dropped, and the table never holds more than max entries.
// A non-positive rate disables throttling.
type callerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	max       int
	now       func() time.Time
	lastSweep time.Time
	visitors  map[string]*visitor
}

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      visitorTTL,
		max:      maxVisitors,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *callerLimiter) allow(source string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.evictIdle(now)
		l.lastSweep = now
	}
	v, ok := l.visitors[source]
	if !ok {
		if len(l.visitors) >= l.max {
			l.evictIdle(now)
		}
		if len(l.visitors) >= l.max {
			l.evictOldest()
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

func (l *callerLimiter) evictIdle(now time.Time) {
	for source, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, source)
		}
	}
}

func (l *callerLimiter) evictOldest() {
	var oldest string
	var seen time.Time
	for source, v := range l.visitors {
		if oldest == "" || v.lastSeen.Before(seen) {
			oldest, seen = source, v.lastSeen
		}
	}
	delete(l.visitors, oldest)
}
