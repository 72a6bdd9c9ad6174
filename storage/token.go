package storage

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const uploadAudience = "upload"

// signUploadToken binds one future upload to a user and a storage id.
func signUploadToken(secret []byte, userID uint, storageID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        storageID,
		Audience:  jwt.ClaimStrings{uploadAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseUploadToken(secret []byte, tokenStr string) (uint, string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(uploadAudience), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", err
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, "", errors.New("invalid subject")
	}
	if claims.ID == "" {
		return 0, "", errors.New("missing storage id")
	}

	return uint(userID), claims.ID, nil
}
