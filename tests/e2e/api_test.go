package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/jmoiron/sqlx"
	"github.com/mkravets/shortener/internal/config"
	"github.com/mkravets/shortener/internal/database/postgres"
	"github.com/mkravets/shortener/tests"
	"github.com/stretchr/testify/suite"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type APITestSuite struct {
	suite.Suite
	cfg     *config.Config
	db      *sqlx.DB
	urlRepo *postgres.URLRepository
	e       *httpexpect.Expect
}

func (suite *APITestSuite) SetupSuite() {
	root, err := tests.FindProjectRoot()
	if err != nil {
		suite.T().Fatalf("Failed to get project root: %v", err)
	}

	configPath := filepath.Join(root, os.Getenv("CONFIG_PATH"))

	suite.cfg, err = config.Load(configPath)
	if err != nil {
		suite.T().Fatalf("Failed to load config: %v", err)
	}

	suite.db, err = sqlx.Connect("pgx", suite.cfg.Postgres.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.db.Close()
	})

	suite.urlRepo = postgres.NewURLRepository(suite.db)

	baseURL := fmt.Sprintf("http://localhost:%d", suite.cfg.HTTPServer.Port)
	suite.e = httpexpect.Default(suite.T(), baseURL)
}

func (suite *APITestSuite) TearDownSubTest() {
	_, err := suite.db.Exec(`TRUNCATE TABLE urls RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}
}

func (suite *APITestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *APITestSuite) TestShortenURL() {
	const path = "/api/v1/shorten"

	suite.Run("empty request body", func() {
		resp := suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("invalid request body", func() {
		resp := suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("validation error", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "invalid url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
		resp.Value("details").Array().Value(0).Object().
			HasValue("field", "url").
			ContainsKey("issue")
	})

	suite.Run("success", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.HasValue("status", "success")

		data := resp.Value("data").Object()
		data.ContainsKey("id")
		data.ContainsKey("code")
		data.HasValue("url", "https://example.com")
		data.HasValue("access_count", 0)
		data.ContainsKey("created_at")
	})
}

func (suite *APITestSuite) TestResolveCode() {
	path := "/api/v1/shorten/%s"

	suite.Run("url not found", func() {
		resp := suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("success", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc123", "https://example.com", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		resp := suite.e.GET(fmt.Sprintf(path, url.Code)).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		data := resp.Value("data").Object()
		data.HasValue("id", url.ID)
		data.HasValue("code", url.Code)
		data.HasValue("url", url.OriginalURL)
		data.ContainsKey("created_at")
	})
}

func (suite *APITestSuite) TestRedirect() {
	path := "/%s"

	suite.Run("url not found", func() {
		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("expired url", func() {
		expiresAt := time.Now().Add(-time.Hour)

		url, err := suite.urlRepo.Create(context.Background(), "abc123", "https://example.com", &expiresAt)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.GET(fmt.Sprintf(path, url.Code)).
			Expect().
			Status(http.StatusGone)
	})

	suite.Run("success", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc123", "https://example.com", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.GET(fmt.Sprintf(path, url.Code)).
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual(url.OriginalURL)
	})
}

func (suite *APITestSuite) TestGetURLStats() {
	path := "/api/v1/shorten/%s/stats"

	suite.Run("url not found", func() {
		resp := suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("success", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc123", "https://example.com", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		resp := suite.e.GET(fmt.Sprintf(path, url.Code)).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		data := resp.Value("data").Object()
		data.HasValue("id", url.ID)
		data.HasValue("code", url.Code)
		data.HasValue("access_count", 0)
		data.Value("events").Array().Length().IsEqual(0)
	})
}

func (suite *APITestSuite) TestListRecentURLs() {
	const path = "/api/v1/urls/recent"

	suite.Run("success", func() {
		_, err := suite.urlRepo.Create(context.Background(), "abc123", "https://example.com", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Array().
			Length().IsEqual(1)
	})
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
