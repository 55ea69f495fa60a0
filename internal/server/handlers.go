package server

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/history"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/pipeline"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

type analyzeRequest struct {
	Text *string `json:"text"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Classifier string `json:"classifier,omitempty"`
	Sentence   string `json:"sentence,omitempty"`
}

type labelResponse struct {
	Label sentiment.Label `json:"label"`
	Name  string          `json:"name"`
	Color string          `json:"color"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "请求格式错误"})
	}
	if req.Text == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "缺少 text 字段"})
	}

	a, err := s.analyzer.Analyze(c.Request().Context(), *req.Text)
	if err != nil {
		var ce *sentiment.ClassificationError
		if errors.As(err, &ce) {
			return c.JSON(http.StatusBadGateway, errorResponse{
				Error:      err.Error(),
				Classifier: ce.Classifier,
				Sentence:   ce.Sentence,
			})
		}
		logger.Errorf("[server] 分析失败: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	s.setLast(a)
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleLabels(c echo.Context) error {
	labels := s.analyzer.Labels()
	out := make([]labelResponse, 0, len(labels.Labels))
	for _, l := range labels.Labels {
		out = append(out, labelResponse{Label: l, Name: labels.Name(l), Color: labels.Color(l)})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"variant": labels.Variant,
		"labels":  out,
	})
}

// handleChart 渲染指定历史分析或最近一次分析的柱状图。
func (s *Server) handleChart(c echo.Context) error {
	var a *pipeline.Analysis
	if id := c.QueryParam("id"); id != "" {
		if s.opts.History == nil {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "未启用历史记录"})
		}
		var err error
		a, err = s.opts.History.Get(c.Request().Context(), id)
		if errors.Is(err, history.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "分析记录不存在"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
	} else {
		a = s.lastAnalysis()
	}
	if a == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "还没有分析结果"})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, chart.Render(a.Series, s.opts.Render)); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleHistoryList(c echo.Context) error {
	if s.opts.History == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "未启用历史记录"})
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit 应为非负整数"})
		}
		limit = n
	}

	list, err := s.opts.History.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if list == nil {
		list = []history.Summary{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleHistoryGet(c echo.Context) error {
	if s.opts.History == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "未启用历史记录"})
	}
	a, err := s.opts.History.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "分析记录不存在"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, a)
}
