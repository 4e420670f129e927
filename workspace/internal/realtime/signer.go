package realtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidRoomToken  = errors.New("invalid room token")
	ErrSignerUnavailable = errors.New("realtime signer unavailable")
)

// SignedRoom is handed to clients so they can join a room over the gateway.
type SignedRoom struct {
	Room  string `json:"room"`
	Token string `json:"token"`
}

// SignResult keeps "nothing to sign", "signed" and "could not sign" apart.
// Handlers collapse it with OrEmpty when composing the response.
type SignResult struct {
	Rooms       []SignedRoom
	Unavailable bool
	Err         error
}

// OrEmpty returns the signed rooms, or an empty slice if signing did not happen.
func (r SignResult) OrEmpty() []SignedRoom {
	if r.Unavailable || r.Err != nil || r.Rooms == nil {
		return []SignedRoom{}
	}
	return r.Rooms
}

// RoomClaims binds a room to an actor and a company.
type RoomClaims struct {
	Room    string `json:"room"`
	Company string `json:"company"`
	jwt.RegisteredClaims
}

// Signer issues and verifies room tokens (HS256).
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(key []byte, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

// Sign binds every room to actorID. A nil or keyless signer reports
// Unavailable rather than failing.
func (s *Signer) Sign(rooms []Room, actorID string) SignResult {
	if s == nil || len(s.key) == 0 {
		return SignResult{Unavailable: true}
	}
	if actorID == "" {
		return SignResult{Err: errors.New("sign rooms: empty actor id")}
	}

	now := s.now()
	signed := make([]SignedRoom, 0, len(rooms))
	for _, room := range rooms {
		claims := RoomClaims{
			Room:    room.Path,
			Company: room.CompanyID,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   actorID,
				Issuer:    s.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
		if err != nil {
			return SignResult{Err: fmt.Errorf("sign room %s: %w", room.Path, err)}
		}
		signed = append(signed, SignedRoom{Room: room.Path, Token: token})
	}
	return SignResult{Rooms: signed}
}

// Verify checks that token was issued by this signer, for actorID and room,
// and has not expired.
func (s *Signer) Verify(token, actorID, room string) (*RoomClaims, error) {
	if s == nil || len(s.key) == 0 {
		return nil, ErrSignerUnavailable
	}

	parsed, err := jwt.ParseWithClaims(token, &RoomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidRoomToken
		}
		return s.key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(actorID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoomToken, err)
	}

	claims, ok := parsed.Claims.(*RoomClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidRoomToken
	}
	if claims.Room != room {
		return nil, fmt.Errorf("%w: issued for another room", ErrInvalidRoomToken)
	}
	return claims, nil
}
