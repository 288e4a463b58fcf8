package v1

import (
	"strings"

	"github.com/shenikar/resq_dispatch/internal/models"
)

// DTOToSubmission преобразует запрос в сырое обращение
func DTOToSubmission(dto SubmitReportRequest, role models.Role) models.Submission {
	sub := models.Submission{
		SessionID:  strings.TrimSpace(dto.SessionID),
		Text:       dto.Text,
		Audio:      dto.Audio,
		AudioMIME:  dto.AudioMIME,
		Transcript: dto.Transcript,
		ImageRef:   dto.ImageRef,
		ImageTag:   dto.ImageTag,
		Role:       role,
		Channel:    dto.Channel,
	}
	if dto.Latitude != nil && dto.Longitude != nil {
		sub.Coordinates = &models.Coordinates{Latitude: *dto.Latitude, Longitude: *dto.Longitude}
	}
	return sub
}

// DTOToOverrides преобразует запрос одобрения в правки диспетчера
func DTOToOverrides(dto ApproveRequest) models.ApprovalOverrides {
	overrides := models.ApprovalOverrides{
		Priority: models.Priority(dto.Priority),
		Notes:    dto.Notes,
	}
	if dto.Assets != nil {
		overrides.Assets = make([]models.Asset, len(dto.Assets))
		for i, a := range dto.Assets {
			overrides.Assets[i] = models.Asset{Type: a.Type, Quantity: a.Quantity}
		}
	}
	return overrides
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	resp := &IncidentResponse{
		ID:                model.ID,
		Status:            string(model.Status),
		Priority:          string(model.Priority),
		IncidentType:      string(model.Type),
		Description:       model.Description,
		RecommendedAssets: make([]AssetDTO, len(model.Assets)),
		Analysis:          model.Analysis,
		AssignedCommander: model.CommanderID(),
		Version:           model.Version,
		History:           make([]TransitionDTO, len(model.Transitions)),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		DispatchedAt:      model.DispatchedAt,
		ResolvedAt:        model.ResolvedAt,
	}
	if model.Location != nil {
		resp.Location = &LocationDTO{
			Latitude:  model.Location.Latitude,
			Longitude: model.Location.Longitude,
			Address:   model.Location.Address,
		}
	}
	for i, a := range model.Assets {
		resp.RecommendedAssets[i] = AssetDTO{Type: a.Type, Quantity: a.Quantity}
	}
	for i, e := range model.Transitions {
		resp.History[i] = TransitionDTO{
			Version:   e.Version,
			From:      string(e.From),
			To:        string(e.To),
			ActorID:   e.Actor.ID,
			ActorRole: string(e.Actor.Role),
			Reason:    e.Reason,
			Notes:     e.Notes,
			Timestamp: e.Timestamp,
		}
	}
	return resp
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}
