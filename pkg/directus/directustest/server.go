// Package directustest runs an in-memory stand-in for the CMS REST API so
// client code can be tested over real HTTP.
package directustest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cmsops/pkg/directus"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "secret-admin"
	adminRoleID   = "00000000-0000-0000-0000-00000000a001"
)

type Options struct {
	Email       string
	Password    string
	StaticToken string
	// TTL of issued access tokens; zero means 15 minutes.
	TTL    time.Duration
	Secret string
}

// Server is the fake. All state sits behind mu; accessors return copies.
type Server struct {
	URL string

	opts   Options
	secret []byte
	srv    *httptest.Server

	mu          sync.Mutex
	generation  int
	refresh     map[string]bool
	logins      int
	refreshes   int
	writes      []string
	collections map[string]*directus.Collection
	order       []string
	fields      map[string][]directus.Field
	items       map[string][]directus.Item
	nextItemID  map[string]int
	relations   []directus.Relation
	perms       []directus.Permission
	nextPermID  int
	flows       []directus.Flow
	files       []directus.File
	users       []directus.User
	passwords   map[string]string
	roles       []directus.Role
}

// New starts the fake and registers its shutdown with t.Cleanup.
func New(t testing.TB, opts Options) *Server {
	t.Helper()
	if opts.Email == "" {
		opts.Email = AdminEmail
	}
	if opts.Password == "" {
		opts.Password = AdminPassword
	}
	if opts.TTL == 0 {
		opts.TTL = 15 * time.Minute
	}
	if opts.Secret == "" {
		opts.Secret = "directustest-secret"
	}
	s := &Server{
		opts:        opts,
		secret:      []byte(opts.Secret),
		refresh:     map[string]bool{},
		collections: map[string]*directus.Collection{},
		fields:      map[string][]directus.Field{},
		items:       map[string][]directus.Item{},
		nextItemID:  map[string]int{},
		nextPermID:  1,
		passwords:   map[string]string{opts.Email: opts.Password},
		roles:       []directus.Role{{ID: adminRoleID, Name: "Administrator"}},
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s.routes(r)
	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Client returns a CMS client logged in with the fake's admin credentials.
func (s *Server) Client(opts ...directus.Option) *directus.Client {
	base := []directus.Option{directus.WithCredentials(s.opts.Email, s.opts.Password)}
	return directus.New(s.URL, append(base, opts...)...)
}

func (s *Server) routes(r *gin.Engine) {
	r.POST("/auth/login", s.login)
	r.POST("/auth/refresh", s.refreshToken)
	r.GET("/server/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/server/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	api := r.Group("/")
	api.Use(s.auth())
	api.GET("/items/:collection", s.listItems)
	api.GET("/items/:collection/:id", s.getItem)
	api.POST("/items/:collection", s.createItem)
	api.PATCH("/items/:collection/:id", s.updateItem)
	api.DELETE("/items/:collection/:id", s.deleteItem)

	api.GET("/fields", s.listFields)
	api.GET("/fields/:collection", s.listFields)
	api.GET("/fields/:collection/:field", s.getField)
	api.POST("/fields/:collection", s.createField)
	api.PATCH("/fields/:collection/:field", s.updateField)
	api.DELETE("/fields/:collection/:field", s.deleteField)

	api.GET("/collections", s.listCollections)
	api.GET("/collections/:collection", s.getCollection)
	api.POST("/collections", s.createCollection)
	api.DELETE("/collections/:collection", s.deleteCollection)

	api.GET("/relations", s.listRelations)
	api.POST("/relations", s.createRelation)
	api.DELETE("/relations/:collection/:field", s.deleteRelation)

	api.GET("/permissions", s.listPermissions)
	api.POST("/permissions", s.createPermission)
	api.PATCH("/permissions/:id", s.updatePermission)
	api.DELETE("/permissions/:id", s.deletePermission)

	api.GET("/flows", s.listFlows)
	api.PATCH("/flows/:id", s.updateFlow)

	api.POST("/files", s.uploadFile)
	api.GET("/users", s.listUsers)
	api.POST("/users", s.createUser)
	api.GET("/roles", s.listRoles)
	api.GET("/schema/snapshot", s.snapshot)
}

func apiError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"errors": []gin.H{{
		"message":    msg,
		"extensions": gin.H{"code": code},
	}}})
}

func forbidden(c *gin.Context) {
	apiError(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
}

func data(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

func (s *Server) issue() (gin.H, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":           uuid.NewString(),
		"role":         adminRoleID,
		"app_access":   true,
		"admin_access": true,
		"gen":          gen,
		"iss":          "directus",
		"exp":          time.Now().Add(s.opts.TTL).Unix(),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	rt := uuid.NewString()
	s.mu.Lock()
	s.refresh[rt] = true
	s.mu.Unlock()
	return gin.H{"access_token": signed, "expires": s.opts.TTL.Milliseconds(), "refresh_token": rt}, nil
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	want, ok := s.passwords[body.Email]
	s.mu.Unlock()
	if !ok || want != body.Password {
		apiError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
		return
	}
	res, err := s.issue()
	if err != nil {
		apiError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
		return
	}
	s.mu.Lock()
	s.logins++
	s.mu.Unlock()
	data(c, http.StatusOK, res)
}

func (s *Server) refreshToken(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&body)
	s.mu.Lock()
	ok := s.refresh[body.RefreshToken]
	delete(s.refresh, body.RefreshToken)
	s.mu.Unlock()
	if !ok {
		apiError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
		return
	}
	res, err := s.issue()
	if err != nil {
		apiError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
		return
	}
	s.mu.Lock()
	s.refreshes++
	s.mu.Unlock()
	data(c, http.StatusOK, res)
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			apiError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "missing or invalid Authorization header")
			return
		}
		tokenString := authHeader[7:]
		if s.opts.StaticToken == "" || tokenString != s.opts.StaticToken {
			if !s.validToken(c, tokenString) {
				return
			}
		}
		if c.Request.Method != http.MethodGet {
			s.mu.Lock()
			s.writes = append(s.writes, c.Request.Method+" "+c.Request.URL.Path)
			s.mu.Unlock()
		}
		c.Next()
	}
}

func (s *Server) validToken(c *gin.Context, tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		apiError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired.")
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		apiError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid claims")
		return false
	}
	gen, _ := claims["gen"].(float64)
	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if int(gen) != current {
		apiError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
		return false
	}
	return true
}

// InvalidateTokens makes every issued access token fail with 401.
func (s *Server) InvalidateTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Writes lists "METHOD /path" for every authenticated non-GET request.
func (s *Server) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}
