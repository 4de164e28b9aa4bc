package server

import (
	"encoding/json"
	"net/http"
)

// AdminHandler 管理与监控接口
//
//	GET /healthz       存活检查
//	GET /metrics       运行指标与当前连接数
//	GET /roster        按接入顺序列出全部客户端
//	GET /admin/config  当前生效的配置
func (s *Server) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/roster", s.HandleRoster)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	return mux
}

// HandleMetrics 输出中继的运行指标
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]any{
		"clients": s.registry.Len(),
		"metrics": s.metrics.Snapshot(),
	}
	writeJSON(w, payload)
}

// HandleRoster 输出注册表快照
func (s *Server) HandleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.registry.Snapshot())
}

// HandleAdminConfig 只读：配置在启动时确定
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Warnf("write admin response: %v", err)
	}
}
