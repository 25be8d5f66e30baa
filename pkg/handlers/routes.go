package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every API route. metricsHandler may be nil.
func NewRouter(api *API, sessionSecret []byte, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	store := cookie.NewStore(sessionSecret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	r.Use(sessions.Sessions("blogsession", store))

	r.MaxMultipartMemory = 8 << 20

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/posts", api.ListPosts)
		apiGroup.GET("/profile", api.GetProfile)
		apiGroup.POST("/admin/login", api.Login)
		apiGroup.POST("/admin/logout", api.Logout)

		admin := apiGroup.Group("/")
		admin.Use(api.AdminRequired)
		{
			admin.POST("/posts", api.CreatePost)
			admin.DELETE("/posts/:slug", api.DeletePost)
			admin.GET("/media", api.ListMedia)
			admin.POST("/media", api.UploadMedia)
			admin.DELETE("/media/:name", api.DeleteMedia)
		}
	}

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return r
}
