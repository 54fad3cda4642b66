package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// openAPIDocument は /api のOpenAPI定義
//
//go:embed openapi.yaml
var openAPIDocument []byte

// loadOpenAPI は埋め込みのAPI定義を読み込み、リクエスト検証用のルーターを作成する
func loadOpenAPI(ctx context.Context) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, nil, fmt.Errorf("API定義の読み込みに失敗: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, nil, fmt.Errorf("API定義が不正です: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("APIルーターの作成に失敗: %w", err)
	}
	return doc, router, nil
}

// mustLoadOpenAPI は埋め込みのAPI定義を読み込む。定義が壊れている場合はpanicする
func mustLoadOpenAPI() routers.Router {
	_, router, err := loadOpenAPI(context.Background())
	if err != nil {
		panic(err)
	}
	return router
}

// validateRequest はAPI定義に沿わないリクエストを400で拒否するミドルウェア
//
// 定義にないパス・メソッドはそのままginのルーティングに任せる。
func (s *Server) validateRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, params, err := s.apiRouter.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: params,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			s.logger.Debug("リクエストの検証に失敗", "path", c.Request.URL.Path, "error", err)
			errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		c.Next()
	}
}

// handleOpenAPI はAPI定義を返す
func (s *Server) handleOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIDocument)
}

// StreamParams は "/" と "/stream" のクエリパラメーター
type StreamParams struct {
	Quality *int // 1-100。未指定ならデフォルト品質
	Delay   *int // ミリ秒。未指定ならデフォルト間隔
}

// bindStreamParams はクエリから品質と配信間隔を読む
func bindStreamParams(c *gin.Context) (StreamParams, error) {
	var params StreamParams
	query := c.Request.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "quality", query, &params.Quality); err != nil {
		return params, fmt.Errorf("qualityは整数で指定してください: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "delay", query, &params.Delay); err != nil {
		return params, fmt.Errorf("delayはミリ秒の整数で指定してください: %w", err)
	}
	return params, nil
}
