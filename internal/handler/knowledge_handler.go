package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/knowledge"
)

// maxUploadBytes bounds the multipart form we are willing to parse.
const maxUploadBytes = 25 << 20

// KnowledgeHandler handles HTTP requests for agent knowledge bases
type KnowledgeHandler struct {
	agents       *AgentHandler
	knowledgeSvc *knowledge.Service
	agentRepo    repository.AgentConfigRepository
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(agents *AgentHandler, knowledgeSvc *knowledge.Service, agentRepo repository.AgentConfigRepository) *KnowledgeHandler {
	return &KnowledgeHandler{
		agents:       agents,
		knowledgeSvc: knowledgeSvc,
		agentRepo:    agentRepo,
	}
}

// UploadDocument godoc
// @Summary Upload a knowledge document
// @Description Multipart upload; the document is indexed into the agent's pipeline
// @Tags knowledge
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param file formData file true "Document file"
// @Success 201 {object} domain.KnowledgeDocument "Document indexed"
// @Failure 400 {object} map[string]string "Invalid upload or knowledge base disabled"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/documents [post]
func (h *KnowledgeHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	doc, err := h.knowledgeSvc.Upload(r.Context(), agent, header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		if errors.Is(err, knowledge.ErrKnowledgeBaseDisabled) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments godoc
// @Summary List an agent's knowledge documents
// @Tags knowledge
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 200 {array} domain.KnowledgeDocument "Documents"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/documents [get]
func (h *KnowledgeHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	docs, err := h.knowledgeSvc.List(r.Context(), agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if docs == nil {
		docs = []*domain.KnowledgeDocument{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// DeleteDocument godoc
// @Summary Delete a knowledge document
// @Description Removes the document from the vendor index, blob storage and the database
// @Tags knowledge
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param docId path string true "Document ID (UUID)" format(uuid)
// @Success 204 "Document deleted"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Document not found"
// @Router /api/agents/{id}/documents/{docId} [delete]
func (h *KnowledgeHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	docID := mux.Vars(r)["docId"]
	if err := h.knowledgeSvc.Delete(r.Context(), agent.ID, docID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QueryDocuments godoc
// @Summary Query an agent's knowledge base
// @Tags knowledge
// @Accept json
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param query body domain.KnowledgeQueryRequest true "Query"
// @Success 200 {array} domain.KnowledgeChunk "Retrieved chunks"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/documents/query [post]
func (h *KnowledgeHandler) QueryDocuments(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	h.runQuery(w, r, agent)
}

// QueryDocumentsInternal godoc
// @Summary Query a knowledge base (service)
// @Description Worker-facing knowledge lookup, authenticated with the shared service key
// @Tags internal
// @Accept json
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param query body domain.KnowledgeQueryRequest true "Query"
// @Success 200 {array} domain.KnowledgeChunk "Retrieved chunks"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/internal/agents/{id}/knowledge/query [post]
func (h *KnowledgeHandler) QueryDocumentsInternal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	agent, err := h.agentRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.runQuery(w, r, agent)
}

func (h *KnowledgeHandler) runQuery(w http.ResponseWriter, r *http.Request, agent *domain.AgentConfig) {
	var req domain.KnowledgeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunks, err := h.knowledgeSvc.Query(r.Context(), agent, &req)
	if err != nil {
		if errors.Is(err, knowledge.ErrKnowledgeBaseDisabled) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if chunks == nil {
		chunks = []domain.KnowledgeChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}
