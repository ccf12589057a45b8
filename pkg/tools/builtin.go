package tools

import (
	"context"
	"time"

	"github.com/aura-voice/aura/pkg/core"
	"github.com/aura-voice/aura/pkg/state"
)

// ShoppingAdder is the write side of the shopping list collaborator.
type ShoppingAdder interface {
	AddItem(ctx context.Context, name string) error
}

// NewsFetcher loads headlines for a topic.
type NewsFetcher interface {
	News(ctx context.Context, topic string) ([]state.NewsItem, error)
}

// Deps are the collaborators the builtin functions act on. Nil collaborators
// make the corresponding function report an execution failure.
type Deps struct {
	State    *state.Store
	Shopping ShoppingAdder
	News     NewsFetcher
	Now      func() time.Time
}

func stringSchema(props map[string]string, required ...string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "STRING", "description": desc}
	}
	schema := map[string]any{"type": "OBJECT", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RegisterBuiltins installs the assistant's function set into the registry.
func RegisterBuiltins(r *Registry, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}

	r.Register(Declaration{
		Name:        "updateSurface",
		Description: "Switch the visible app surface (home, shopping, agenda, tasks, news, weather, documents, vision, settings).",
		Parameters:  stringSchema(map[string]string{"surface": "Surface identifier to activate."}, "surface"),
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		name, err := stringArg(args, "surface")
		if err != nil {
			return nil, err
		}
		// Unrecognized identifiers are ignored, not errored.
		if surface := state.Surface(name); state.KnownSurface(surface) {
			d.State.SetActiveSurface(surface)
		}
		return map[string]any{"result": "ok"}, nil
	})

	r.Register(Declaration{
		Name:        "addShoppingItem",
		Description: "Add an item to the user's shopping list.",
		Parameters:  stringSchema(map[string]string{"item": "Item name to add."}, "item"),
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		item, err := stringArg(args, "item")
		if err != nil {
			return nil, err
		}
		if d.Shopping == nil {
			return nil, core.NewToolExecutionError("shopping list is unavailable")
		}
		if err := d.Shopping.AddItem(ctx, item); err != nil {
			return nil, core.NewToolExecutionError(err.Error())
		}
		d.State.SetActiveSurface(state.SurfaceShopping)
		return map[string]any{"result": "ok", "item": item}, nil
	})

	r.Register(Declaration{
		Name:        "checkTime",
		Description: "Get the current local time and date.",
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		now := d.Now()
		return map[string]any{
			"time": now.Format("15:04"),
			"date": now.Format("02/01/2006"),
		}, nil
	})

	r.Register(Declaration{
		Name:        "getNews",
		Description: "Fetch current news headlines and show them to the user.",
		Parameters:  stringSchema(map[string]string{"topic": "Topic to search headlines for."}),
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		topic := optionalStringArg(args, "topic", "geral")
		if d.News == nil {
			return nil, core.NewToolExecutionError("news service is unavailable")
		}
		items, err := d.News.News(ctx, topic)
		if err != nil {
			return nil, core.NewToolExecutionError(err.Error())
		}
		d.State.SetNews(topic, items)
		d.State.SetActiveSurface(state.SurfaceNews)
		return map[string]any{"result": "ok", "count": len(items)}, nil
	})

	r.Register(Declaration{
		Name:        "createDocument",
		Description: "Open the document editor with the given content as a draft.",
		Parameters:  stringSchema(map[string]string{"content": "Initial document content."}, "content"),
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		content, err := stringArg(args, "content")
		if err != nil {
			return nil, err
		}
		d.State.SetDocumentDraft(content)
		d.State.SetActiveSurface(state.SurfaceDocuments)
		return map[string]any{"result": "ok"}, nil
	})

	visionTool := func(name, desc string, mode state.VisionMode) {
		r.Register(Declaration{Name: name, Description: desc},
			func(ctx context.Context, args map[string]any) (map[string]any, error) {
				d.State.SetVisionMode(mode)
				d.State.SetActiveSurface(state.SurfaceVision)
				return map[string]any{"result": "ok"}, nil
			})
	}
	visionTool("startImageAnalysis", "Open the camera to capture a single image for analysis.", state.VisionImage)
	visionTool("startVideoAnalysis", "Open the camera to record a short video for analysis.", state.VisionVideo)
	visionTool("startLiveVision", "Start streaming live camera frames into the conversation.", state.VisionLive)
}
