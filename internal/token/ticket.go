package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ticketValidity は発行日の終わりから受付チケットが有効な時間。
const ticketValidity = 12 * time.Hour

// ErrInvalidTicket は署名・有効期限・形式のいずれかが不正なチケットで返される。
var ErrInvalidTicket = errors.New("invalid ticket")

// TicketClaims は受付チケット（HS256 JWT）のクレーム。
type TicketClaims struct {
	jwt.RegisteredClaims
	Tenant  string `json:"tenant"`
	TokenID string `json:"token_id"`
}

// TicketSigner は患者に渡す受付チケットを署名・検証する。
// チケットがあればログインなしで自分の受付番号の状況を確認できる。
type TicketSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTicketSigner はTicketSignerを生成する。
func NewTicketSigner(secret string) *TicketSigner {
	return &TicketSigner{secret: []byte(secret), now: time.Now}
}

// Sign はtenantとtokenIDを含むチケットを発行する。
// 有効期限はissuedOnの日の終わりから12時間後。
func (s *TicketSigner) Sign(tenant, tokenID string, issuedOn time.Time) (string, error) {
	y, m, d := issuedOn.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, issuedOn.Location())

	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenID,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(endOfDay.Add(ticketValidity)),
		},
		Tenant:  tenant,
		TokenID: tokenID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

// Verify はチケットを検証してクレームを返す。
func (s *TicketSigner) Verify(ticket string) (*TicketClaims, error) {
	parsed, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	claims, ok := parsed.Claims.(*TicketClaims)
	if !ok || !parsed.Valid || claims.Tenant == "" || claims.TokenID == "" {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
