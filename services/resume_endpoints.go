package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anvekars/mockmate/backend/models"
	"github.com/anvekars/mockmate/backend/repository"
	"github.com/go-chi/chi/v5"
)

const maxResumeBytes = 10 * 1024 * 1024

type ResumeEndpoints struct {
	repo           *repository.GORMRepository
	parser         *ResumeParser
	storageService *StorageService
}

func NewResumeEndpoints(repo *repository.GORMRepository, parser *ResumeParser, storageService *StorageService) *ResumeEndpoints {
	return &ResumeEndpoints{
		repo:           repo,
		parser:         parser,
		storageService: storageService,
	}
}

func (e *ResumeEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/resumes", func(r chi.Router) {
		r.Post("/", e.UploadHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{resumeID}", e.GetHandler)
	})
}

// UploadHandler accepts a resume PDF, stores the blob, parses the
// profile and persists the record. Parsing is best-effort; an upload
// never fails because the profile could not be extracted.
func (e *ResumeEndpoints) UploadHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing resume file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := strings.ToLower(header.Filename)
	isPDF := strings.HasSuffix(filename, ".pdf")
	if !isPDF && !strings.HasSuffix(filename, ".txt") {
		http.Error(w, "Only PDF and plain text resumes are supported", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxResumeBytes))
	if err != nil {
		http.Error(w, "Failed to read resume", http.StatusBadRequest)
		return
	}

	blobURL := ""
	if e.storageService.Enabled() {
		result, err := e.storageService.UploadResume(r.Context(), data, header.Filename, user.ID)
		if err != nil {
			slog.Error("Resume blob upload failed", "error", err, "user_id", user.ID)
			http.Error(w, "Resume upload failed", HTTPStatus(err))
			return
		}
		blobURL = result.BlobURL
	}

	var profile *ResumeProfile
	if isPDF {
		profile = e.parser.ParsePDF(r.Context(), data)
	} else {
		profile = e.parser.ParseText(r.Context(), string(data))
	}

	resume := &models.Resume{
		UserID:          user.ID,
		Filename:        header.Filename,
		BlobURL:         blobURL,
		FileSize:        len(data),
		ExtractedText:   profile.ExtractedText,
		JobRole:         profile.JobRole,
		ExperienceYears: profile.ExperienceYears,
		Skills:          profile.Skills,
	}

	if err := e.repo.CreateResume(r.Context(), resume); err != nil {
		http.Error(w, "Failed to save resume", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resume)
}

func (e *ResumeEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	resumes, err := e.repo.GetResumes(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to list resumes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"resumes": resumes,
		"count":   len(resumes),
	})
}

func (e *ResumeEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	resume, err := e.repo.GetResume(r.Context(), chi.URLParam(r, "resumeID"), user.ID)
	if err != nil {
		http.Error(w, "Failed to load resume", http.StatusInternalServerError)
		return
	}
	if resume == nil {
		http.Error(w, "Resume not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resume)
}
