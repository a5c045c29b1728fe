package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	localauth "taskboard-api/auth"
	"taskboard-api/board"
	"taskboard-api/github"
	"taskboard-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := storage.Tables{
		Boards:  os.Getenv("BOARDS_TABLE"),
		Members: os.Getenv("MEMBERS_TABLE"),
		TaskLoc: os.Getenv("TASKLOC_TABLE"),
		Users:   os.Getenv("USERS_TABLE"),
	}
	if connStr == "" || tables.Boards == "" || tables.Members == "" || tables.TaskLoc == "" || tables.Users == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tables)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var repo board.Repository = store
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := 5 * time.Minute
		if v := os.Getenv("BOARD_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid BOARD_CACHE_TTL: %v", err)
			}
			ttl = d
		}
		repo = storage.NewCache(store, redis.NewClient(redisOpts), ttl)
	}

	var auth *api.Auth
	var issuer *localauth.TokenIssuer
	if strings.ToLower(os.Getenv("LOCAL_AUTH_MODE")) == "hs256" {
		secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
		if secret == "" {
			log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		auth = api.NewLocalAuth([]byte(secret), "taskboard-api")
		issuer = localauth.NewTokenIssuer([]byte(secret), "taskboard-api", localauth.DefaultTokenTTL)
	} else {
		jwtAudience := os.Getenv("JWT_AUDIENCE")
		domain := os.Getenv("JWT_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	commits := github.NewClient(os.Getenv("GITHUB_API_URL"), os.Getenv("GITHUB_TOKEN"))
	engine := board.New(repo, store, commits, logger)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, engine, auth, store, issuer, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
