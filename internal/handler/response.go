package handler

import (
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/hitoshi/castradar/internal/middleware"
)

// writeJSON はvをJSONエンコードしてレスポンスに書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeRawJSON(w, statusCode, body)
}

// writeRawJSON はエンコード済みのJSONをそのまま書き込む。
func writeRawJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

func marshalResponse(v any) ([]byte, error) {
	return json.Marshal(v)
}
