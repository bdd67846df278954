// Social service client.
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/transport"
)

// SocialService reads the authenticated subject's social graph.
type SocialService struct {
	service
}

// NewSocialService creates a social service client. Options.Identity is
// required.
func NewSocialService(opts Options) *SocialService {
	return &SocialService{service: newService(opts, "social")}
}

// Friends returns the subject's friend list.
func (s *SocialService) Friends(ctx context.Context) ([]models.Friend, error) {
	subject, err := s.subject()
	if err != nil {
		return nil, err
	}

	var friends []models.Friend
	route := transport.NewRoute(http.MethodGet, s.cfg.Platform.SocialURL, "/friends/api/public/friends/{subjectId}",
		map[string]string{"subjectId": subject})
	if err := s.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &friends); err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return friends, nil
}
