package router

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shopdoc/internal/logger"
)

func writeJSON(response http.ResponseWriter, status int, payload any) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorw("unable to encode the response", zap.Error(err))
		http.Error(response, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)

	if _, err := response.Write(jsonData); err != nil {
		logger.Log.Debugw("unable to write the response", zap.Error(err))
	}
}
