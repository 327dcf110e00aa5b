package server

import (
	"net/http"

	"backend/internal/cache"
	"backend/internal/config"
	"backend/internal/email"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	log    *zap.Logger
}

func NewServer(db *sqlx.DB, codes cache.CodeStore, mailer email.Sender, cfg *config.Config, log *zap.Logger) *Server {
	s := &Server{
		router: gin.Default(),
		log:    log,
	}

	s.setupRoutes(db, codes, mailer, cfg)

	return s
}

// routeMeta is the per-operation authorization table consumed by the guard
// pipeline. Operations that require permissions also require login; the
// permission guard passes when no identity is attached.
func routeMeta() middleware.Routes {
	loginOnly := middleware.Meta{RequiresLogin: true}
	manageRooms := middleware.Meta{RequiresLogin: true, RequiredPermissions: []string{"meeting_room:manage"}}
	freezeUsers := middleware.Meta{RequiresLogin: true, RequiredPermissions: []string{"user:freeze"}}

	return middleware.Routes{
		"GET /user/info":                    loginOnly,
		"GET /user/admin/info":              loginOnly,
		"GET /user/password-captcha":        loginOnly,
		"GET /user/admin/password-captcha":  loginOnly,
		"GET /user/update-captcha":          loginOnly,
		"GET /user/admin/update-captcha":    loginOnly,
		"POST /user/update_password":        loginOnly,
		"POST /user/admin/update_password":  loginOnly,
		"POST /user/update":                 loginOnly,
		"POST /user/admin/update":           loginOnly,
		"GET /user/list":                    loginOnly,
		"GET /user/admin/list":              loginOnly,
		"GET /user/admin/freeze":            freezeUsers,
		"GET /meeting-room/list":            loginOnly,
		"GET /meeting-room/:id":             loginOnly,
		"POST /meeting-room/create":         manageRooms,
		"POST /meeting-room/update":         manageRooms,
		"DELETE /meeting-room/:id":          manageRooms,
	}
}

func (s *Server) setupRoutes(db *sqlx.DB, codes cache.CodeStore, mailer email.Sender, cfg *config.Config) {
	userRepo := repository.NewUserRepository(db, s.log)
	roomRepo := repository.NewMeetingRoomRepository(db, s.log)

	tokens := service.NewTokenManager(cfg.JWT.Secret, cfg.AccessTTL(), cfg.RefreshTTL())
	userService := service.NewUserService(userRepo, codes, mailer, tokens, s.log)
	roomService := service.NewMeetingRoomService(roomRepo, s.log)

	userHandler := handler.NewUserHandler(userService, tokens, s.log)
	roomHandler := handler.NewMeetingRoomHandler(roomService, s.log)
	uploadHandler := handler.NewUploadHandler(cfg.Uploads.Dir, s.log)

	routes := routeMeta()
	s.router.Use(middleware.LoginGuard(tokens, routes, s.log))
	s.router.Use(middleware.PermissionGuard(routes, s.log))

	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	user := s.router.Group("/user")
	{
		user.POST("/register", userHandler.Register)
		user.GET("/register-captcha", userHandler.RegisterCaptcha)
		user.POST("/login", userHandler.Login)
		user.POST("/admin/login", userHandler.AdminLogin)
		user.GET("/refresh", userHandler.Refresh)
		user.GET("/admin/refresh", userHandler.AdminRefresh)

		user.GET("/info", userHandler.Info)
		user.GET("/admin/info", userHandler.Info)
		user.GET("/password-captcha", userHandler.UpdatePasswordCaptcha)
		user.GET("/admin/password-captcha", userHandler.UpdatePasswordCaptcha)
		user.GET("/update-captcha", userHandler.UpdateUserCaptcha)
		user.GET("/admin/update-captcha", userHandler.UpdateUserCaptcha)
		user.POST("/update_password", userHandler.UpdatePassword)
		user.POST("/admin/update_password", userHandler.UpdatePassword)
		user.POST("/update", userHandler.Update)
		user.POST("/admin/update", userHandler.Update)
		user.GET("/list", userHandler.List)
		user.GET("/admin/list", userHandler.List)
		user.GET("/admin/freeze", userHandler.Freeze)

		user.POST("/upload", uploadHandler.Upload)
	}

	room := s.router.Group("/meeting-room")
	{
		room.GET("/list", roomHandler.List)
		room.POST("/create", roomHandler.Create)
		room.POST("/update", roomHandler.Update)
		room.GET("/:id", roomHandler.Get)
		room.DELETE("/:id", roomHandler.Delete)
	}
}

func (s *Server) Run(addr string) {
	s.log.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.log.Fatal("Server failed to start", zap.Error(err))
	}
}
