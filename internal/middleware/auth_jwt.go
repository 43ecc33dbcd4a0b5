package middleware

import (
	"net/http"
	"strings"

	"pos/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	CtxUserIDKey       = "user_id"       // string(uuid)
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
	CtxUsernameKey     = "username"      // string（TokenVersionGuard がDBから積む）
)

// AccessClaims はログイン時に発行するトークンの中身。
// sub = ユーザーID、tv = 発行時の token_version。
type AccessClaims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

// bearerAuth用のJWT検証ミドルウェア。
// 成功したら user_id / role / tv を echo.Context に積む。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	key := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			var claims AccessClaims
			token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				c.Logger().Debugj(log.JSON{"msg": "jwt rejected", "error": errString(err)})
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			// exp の無いトークンは受け付けない
			if claims.Subject == "" || claims.Role == "" || claims.TokenVersion < 0 || claims.ExpiresAt == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, claims.Subject)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenVersionKey, claims.TokenVersion)

			return next(c)
		}
	}
}

// "Bearer <token>" からトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
