package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"closetvote/internal/handlers"
	"closetvote/internal/middleware"
	"closetvote/internal/ratelimit"
	"closetvote/internal/services"
)

// Deps is everything the routes need; main wires the concrete stores.
type Deps struct {
	Ledger      *services.Ledger
	Leaderboard *services.Leaderboard
	Moderation  *services.ModerationService
	Wardrobe    *services.WardrobeService
	Captcha     *services.CaptchaService
	Items       services.ItemStore
	Identity    *middleware.IdentityResolver
	Limiter     ratelimit.Limiter
	Window      time.Duration
	MaxRequests int
	SiteURL     string
	Ping        func(ctx context.Context) error
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	voteHandler := handlers.NewVoteHandler(d.Ledger)
	itemHandler := handlers.NewItemHandler(d.Items)
	leaderboardHandler := handlers.NewLeaderboardHandler(d.Leaderboard)
	captchaHandler := handlers.NewCaptchaHandler(d.Captcha)
	submissionHandler := handlers.NewSubmissionHandler(d.Moderation, captchaHandler)
	wardrobeHandler := handlers.NewWardrobeHandler(d.Wardrobe)
	seoHandler := handlers.NewSEOHandler(d.Items, d.SiteURL)

	limit := func(scope string) gin.HandlerFunc {
		return middleware.RateLimit(d.Limiter, scope, d.Window, d.MaxRequests)
	}

	r.GET("/healthz", handlers.Health(d.Ping))
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)

	api := r.Group("/api")
	{
		api.GET("/items", itemHandler.List)             // 已审核单品列表
		api.GET("/items/:id", itemHandler.Detail)       // 单品详情
		api.GET("/leaderboard", leaderboardHandler.Top) // 本周排行
		api.GET("/captcha", captchaHandler.Issue)       // 获取验证码

		// 投票 (每个身份每周一票)
		api.POST("/items/:id/vote", limit("vote"), d.Identity.Handler(), voteHandler.Vote)
		api.GET("/items/:id/hasVoted", d.Identity.Handler(), voteHandler.HasVoted)
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/items/submit", limit("submit"), submissionHandler.Submit) // 投稿
		authorized.GET("/wardrobe", wardrobeHandler.List)                           // 我的衣橱
		authorized.POST("/wardrobe", wardrobeHandler.Add)                           // 加入衣橱
		authorized.DELETE("/wardrobe/:itemId", wardrobeHandler.Remove)              // 移出衣橱
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/submissions", submissionHandler.Pending)               // 待审核列表
		admin.POST("/submissions/:id/:decision", submissionHandler.Decide) // 通过/拒绝
	}
}
