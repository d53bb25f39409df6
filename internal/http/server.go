package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkostova/taskgrid/internal/log"
	"github.com/mkostova/taskgrid/pkg/storage"
)

// StartServer exposes run reports over HTTP: /health for liveness and
// /reports for the last-run view of every plan.
func StartServer(port string, store storage.Store) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/reports", ReportsHandler(store))
	mux.HandleFunc("/reports/", ReportByPlanHandler(store))

	log.GetLogger().Infof("Starting taskgrid report server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "taskgrid server is running")
}

// ReportsHandler lists the last-run report of every plan.
func ReportsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		reports, err := store.ListRunReports()
		if err != nil {
			log.GetLogger().Errorf("Failed to list reports: %v", err)
			http.Error(w, fmt.Sprintf("Failed to list reports: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reports); err != nil {
			log.GetLogger().Errorf("Failed to encode reports: %v", err)
		}
	}
}

// ReportByPlanHandler serves the last-run report of one plan.
func ReportByPlanHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		planName := r.URL.Path[len("/reports/"):]
		if planName == "" {
			http.Error(w, "Missing plan name", http.StatusBadRequest)
			return
		}
		rep, err := store.GetRunReport(planName)
		if err == storage.ErrNotFound {
			http.Error(w, fmt.Sprintf("No report for plan '%s'", planName), http.StatusNotFound)
			return
		}
		if err != nil {
			log.GetLogger().Errorf("Failed to get report: %v", err)
			http.Error(w, fmt.Sprintf("Failed to get report: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rep); err != nil {
			log.GetLogger().Errorf("Failed to encode report: %v", err)
		}
	}
}
