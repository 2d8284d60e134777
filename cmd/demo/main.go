// cmd/demo/main.go
// 离线演示：用确定性提案器跑通修订流水线，不依赖任何外部LLM
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/services"
)

func main() {
	doc := sampleDocument()

	reviser := services.NewReviserService(
		services.NewRouterService(nil), // 纯关键词路由
		services.NewPatchService(),
		services.NewSceneService(),
		services.NewPropagationService(),
		&scriptedProposer{},
		nil,
	)

	feedbacks := []string{
		"Change the location from the cafe to a city park",
		"Rename the character Elena Cross to Mara Cross",
		"Add another scene after the opening",
	}

	current := doc
	for i, feedback := range feedbacks {
		fmt.Printf("\n===== 修订 %d: %s =====\n", i+1, feedback)

		updated, result, err := reviser.Revise(context.Background(), current, models.RevisionRequest{
			DocumentID:     current.ID,
			Feedback:       feedback,
			TargetedUpdate: true,
		})
		if err != nil {
			log.Fatalf("修订失败: %v", err)
		}

		for _, comp := range result.Components {
			fmt.Printf("组件 %s -> %s", comp.Component, comp.Outcome)
			if comp.Message != "" {
				fmt.Printf(" (%s)", comp.Message)
			}
			fmt.Println()
			if comp.Rename != nil {
				fmt.Printf("  重命名: %s -> %s\n", comp.Rename.OldName, comp.Rename.NewName)
			}
			if comp.Propagation != nil {
				fmt.Printf("  传播触及位置: %d\n", comp.Propagation.Total())
			}
		}
		fmt.Printf("阶段: %s\n", result.Phase)

		current = updated
	}

	fmt.Println("\n===== 最终文档 (Markdown) =====")
	fmt.Println(services.RenderMarkdown(current))
}

// sampleDocument 构造一份小型示例文档
func sampleDocument() *models.NarrativeDocument {
	return &models.NarrativeDocument{
		ID:      "demo_saga",
		Title:   "Midnight Errand",
		Genre:   "noir",
		Tone:    "tense",
		LogLine: "A courier takes one last job that unravels her past.",
		Draft: "Elena Cross steps into the Rusty Cafe just before midnight. " +
			"The Rusty Cafe smells of burnt coffee and old secrets. " +
			"Elena orders nothing and waits.",
		Characters: []models.Character{
			{
				Name:        "Elena Cross",
				PersonaType: "protagonist",
				Description: "A midnight courier with a forged past.",
			},
			{
				Name:        "Marcus Vale",
				PersonaType: "antagonist",
				Description: "A fixer who knows Elena Cross from before.",
			},
		},
		Locations: []models.Location{
			{
				Name:        "Rusty Cafe",
				Description: "A narrow all-night cafe with flickering neon.",
				Atmosphere:  "smoky, wary",
			},
		},
		DialogueLines: []models.DialogueLine{
			{CharacterName: "Elena Cross", SceneNumber: 1, Line: "You said midnight. I'm here."},
			{CharacterName: "Marcus Vale", SceneNumber: 1, Line: "You're early. That worries me."},
			{CharacterName: "Elena Cross", SceneNumber: 2, Line: "Then stop watching the door."},
		},
		Scenes: []models.Scene{
			{
				SceneNumber:          1,
				EnvironmentalContext: "Inside the Rusty Cafe, neon flicker on wet glass.",
				SubjectAction:        "Elena Cross slides into the corner booth.",
				ShotType:             "medium",
				CameraAngle:          "eye-level",
			},
			{
				SceneNumber:          2,
				EnvironmentalContext: "The counter of the Rusty Cafe, steam rising.",
				SubjectAction:        "Marcus Vale stirs a cold coffee without drinking.",
				ShotType:             "close-up",
			},
		},
		VisualLookbook: map[string]interface{}{
			"palette":  "sodium orange against teal shadow",
			"lighting": "practical neon, hard rim light",
		},
		ScenePolicy: models.ScenePolicy{OriginalCount: 2},
	}
}

// scriptedProposer 按反馈关键词返回固定提案，用于离线演示和冒烟验证
type scriptedProposer struct{}

func (p *scriptedProposer) ProposeCharacterChange(ctx context.Context, feedback string, characters []models.Character, summary models.DocumentSummary) (*models.CharacterChange, error) {
	if strings.Contains(strings.ToLower(feedback), "mara") {
		return &models.CharacterChange{
			Action:     models.ActionModify,
			TargetName: "Elena Cross",
			NewCharacter: &models.Character{
				Name:        "Mara Cross",
				PersonaType: "protagonist",
				Description: "A midnight courier with a forged past.",
			},
		}, nil
	}
	return nil, fmt.Errorf("没有匹配该反馈的角色提案脚本: %s", feedback)
}

func (p *scriptedProposer) ProposeLocationChange(ctx context.Context, feedback string, locations []models.Location, summary models.DocumentSummary) (*models.LocationChange, error) {
	if strings.Contains(strings.ToLower(feedback), "park") {
		return &models.LocationChange{
			Action:     models.ActionModify,
			TargetName: "Rusty Cafe",
			NewLocation: &models.Location{
				Name:        "Riverside Park",
				Description: "An empty city park along the river, lit by one dying lamp.",
				Atmosphere:  "open, exposed",
			},
		}, nil
	}
	return nil, fmt.Errorf("没有匹配该反馈的地点提案脚本: %s", feedback)
}

func (p *scriptedProposer) ProposeDialogueChange(ctx context.Context, feedback string, lines []models.DialogueLine, summary models.DocumentSummary) (*models.DialogueChange, error) {
	return nil, fmt.Errorf("演示脚本不包含台词提案")
}

func (p *scriptedProposer) ProposeSceneChange(ctx context.Context, feedback string, scenes []models.Scene, policy models.ScenePolicy, summary models.DocumentSummary) (*models.SceneChange, error) {
	return &models.SceneChange{
		Action:            models.ActionInsertBetween,
		InsertAfterScene:  1,
		NumScenesToInsert: 1,
		NewScenes: []models.Scene{
			{
				EnvironmentalContext: "Rain starts over the street outside.",
				SubjectAction:        "A black sedan rolls past, slowing at the window.",
				ShotType:             "wide",
				CameraMovement:       "slow pan",
			},
		},
	}, nil
}

func (p *scriptedProposer) ProposeDraft(ctx context.Context, feedback string, currentDraft string, summary models.DocumentSummary) (string, error) {
	return "", fmt.Errorf("演示脚本不包含草稿提案")
}

func (p *scriptedProposer) ProposeVisualLookbook(ctx context.Context, feedback string, current map[string]interface{}, summary models.DocumentSummary) (map[string]interface{}, error) {
	return nil, fmt.Errorf("演示脚本不包含视觉手册提案")
}
