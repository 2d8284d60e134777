// internal/services/router_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteByKeywords(t *testing.T) {
	tests := []struct {
		name     string
		feedback string
		want     models.ComponentName
	}{
		{"角色关键词", "Make the main character more ruthless", models.ComponentCharacters},
		{"主角关键词", "The protagonist needs a clearer motivation", models.ComponentCharacters},
		{"草稿关键词", "The story drags in the middle", models.ComponentDraft},
		{"台词关键词", "The dialogue sounds too formal", models.ComponentDialogue},
		{"地点关键词", "Change the location to a rooftop", models.ComponentLocations},
		{"视觉关键词", "Use a warmer color palette", models.ComponentVisualLookbook},
		{"场景关键词", "Scene two feels rushed", models.ComponentScenes},
		{"大小写不敏感", "THE DIALOGUE IS FLAT", models.ComponentDialogue},
		{"全部未命中默认草稿", "make everything better", models.ComponentDraft},
		{"空反馈默认草稿", "", models.ComponentDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteByKeywords(tt.feedback))
		})
	}
}

func TestRouteByKeywords_OrderDecidesTies(t *testing.T) {
	// 反馈同时命中characters和scenes时，路由表顺序裁决，characters在前
	got := RouteByKeywords("the character in scene three should leave earlier")
	assert.Equal(t, models.ComponentCharacters, got)

	// draft排在dialogue之前
	got = RouteByKeywords("the story and the dialogue both need work")
	assert.Equal(t, models.ComponentDraft, got)
}

func TestDetectSceneIncreaseIntent(t *testing.T) {
	assert.True(t, DetectSceneIncreaseIntent("Please add another scene after the chase"))
	assert.True(t, DetectSceneIncreaseIntent("We need MORE SCENES in act two"))
	assert.True(t, DetectSceneIncreaseIntent("insert scene between 3 and 4"))
	assert.False(t, DetectSceneIncreaseIntent("Scene two feels rushed"))
	assert.False(t, DetectSceneIncreaseIntent("modify the second scene"))
	assert.False(t, DetectSceneIncreaseIntent(""))
}

// stubClassifier 返回固定结果或固定错误
type stubClassifier struct {
	result *models.Classification
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, feedback string, summary models.DocumentSummary) (*models.Classification, error) {
	return s.result, s.err
}

func TestRoute_UsesClassifierResult(t *testing.T) {
	router := NewRouterService(&stubClassifier{
		result: &models.Classification{
			PrimaryComponent:    models.ComponentLocations,
			DependentComponents: []models.ComponentName{models.ComponentScenes},
			Reasoning:           "feedback names a place",
		},
	})

	got := router.Route(context.Background(), "move it to the docks", models.DocumentSummary{})
	require.NotNil(t, got)
	assert.Equal(t, models.ComponentLocations, got.PrimaryComponent)
	// 依赖组件只记录，不清除
	assert.Equal(t, []models.ComponentName{models.ComponentScenes}, got.DependentComponents)
}

func TestRoute_FallsBackOnClassifierError(t *testing.T) {
	router := NewRouterService(&stubClassifier{err: fmt.Errorf("llm unavailable")})

	got := router.Route(context.Background(), "the dialogue is flat", models.DocumentSummary{})
	require.NotNil(t, got)
	assert.Equal(t, models.ComponentDialogue, got.PrimaryComponent)
	assert.Equal(t, "keyword routing", got.Reasoning)
}

func TestRoute_FallsBackOnInvalidComponent(t *testing.T) {
	router := NewRouterService(&stubClassifier{
		result: &models.Classification{PrimaryComponent: "soundtrack"},
	})

	got := router.Route(context.Background(), "change the setting", models.DocumentSummary{})
	require.NotNil(t, got)
	assert.Equal(t, models.ComponentLocations, got.PrimaryComponent)
}

func TestRoute_NilClassifierUsesKeywords(t *testing.T) {
	router := NewRouterService(nil)

	got := router.Route(context.Background(), "rewrite the plot", models.DocumentSummary{})
	require.NotNil(t, got)
	assert.Equal(t, models.ComponentDraft, got.PrimaryComponent)
}
