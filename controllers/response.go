package controllers

import (
	"encoding/json"
	"net/http"
)

func setJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, map[string]interface{}{"status": "success", "error_code": "-1", "data": data})
}

func respondError(w http.ResponseWriter, status int, errorCode, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "error_code": errorCode, "message": message})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
