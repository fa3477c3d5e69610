package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/insushim/iswaddon"
	"github.com/insushim/iswaddon/internal/concept"
	"github.com/insushim/iswaddon/internal/store"
)

// maxRequestBody bounds generate requests; textures are not accepted
// inline so this is generous.
const maxRequestBody = 16 << 20

// GenerateRequest describes one add-on. Entities, items and blocks use the
// concept format; the other records are passed through to the builder.
type GenerateRequest struct {
	Name             string            `json:"name" validate:"required,max=64"`
	Namespace        string            `json:"namespace" validate:"required,namespace"`
	Description      string            `json:"description,omitempty" validate:"max=1000"`
	Version          string            `json:"version,omitempty" validate:"omitempty,version"`
	MinEngineVersion string            `json:"minEngineVersion,omitempty" validate:"omitempty,version"`
	Authors          []string          `json:"authors,omitempty"`
	Entities         []json.RawMessage `json:"entities,omitempty"`
	Items            []json.RawMessage `json:"items,omitempty"`
	Blocks           []json.RawMessage `json:"blocks,omitempty"`
	Recipes          []json.RawMessage `json:"recipes,omitempty"`
	LootTables       []LootTableFile   `json:"lootTables,omitempty" validate:"dive"`
	SpawnRules       []json.RawMessage `json:"spawnRules,omitempty"`
	Animations       []json.RawMessage `json:"animations,omitempty"`
	Scripts          *Scripts          `json:"scripts,omitempty"`
	EnableScripting  bool              `json:"enableScripting,omitempty"`
	// Strict fails the whole request when any single artifact is rejected.
	Strict bool `json:"strict,omitempty"`
}

type LootTableFile struct {
	Path    string          `json:"path" validate:"required"`
	Content json.RawMessage `json:"content" validate:"required"`
}

type Scripts struct {
	Main    string         `json:"main,omitempty"`
	Modules []ScriptModule `json:"modules,omitempty" validate:"dive"`
}

type ScriptModule struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content"`
}

// Failure is one rejected artifact of a request.
type Failure struct {
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Identifier string `json:"identifier,omitempty"`
	Error      string `json:"error"`
}

type Download struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
}

type Downloads struct {
	Mcaddon      Download `json:"mcaddon"`
	BehaviorPack Download `json:"behaviorPack"`
	ResourcePack Download `json:"resourcePack"`
}

type GenerateResponse struct {
	Success   bool                   `json:"success"`
	AddonID   string                 `json:"addonId"`
	RequestID string                 `json:"requestId"`
	Downloads Downloads              `json:"downloads"`
	Metadata  iswaddon.BuildMetadata `json:"metadata"`
	Failures  []Failure              `json:"failures,omitempty"`
}

// Event is a websocket message of the streaming generate endpoint.
type Event struct {
	Type       string            `json:"type"`
	Kind       string            `json:"kind,omitempty"`
	Index      int               `json:"index"`
	Identifier string            `json:"identifier,omitempty"`
	OK         bool              `json:"ok"`
	Error      string            `json:"error,omitempty"`
	Result     *GenerateResponse `json:"result,omitempty"`
	Failures   []Failure         `json:"failures,omitempty"`
}

const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

var errStrict = errors.New("strict mode: artifacts were rejected")

// generation runs one request through a fresh builder, reporting every
// artifact to progress.
type generation struct {
	req      *GenerateRequest
	logger   *log.Logger
	progress func(Event)
	builder  *iswaddon.Builder
	failures []Failure
}

func (g *generation) report(kind string, index int, id string, err error) {
	ev := Event{Type: EventProgress, Kind: kind, Index: index, Identifier: id, OK: err == nil}
	if err != nil {
		ev.Error = err.Error()
		g.failures = append(g.failures, Failure{Kind: kind, Index: index, Identifier: id, Error: err.Error()})
		g.logger.Warn("artifact rejected", "kind", kind, "index", index, "identifier", id, "err", err)
	}
	if g.progress != nil {
		g.progress(ev)
	}
}

func (g *generation) run() (*iswaddon.BuildResult, error) {
	req := g.req
	b, err := iswaddon.NewBuilder(iswaddon.AddonConfig{
		Name:             req.Name,
		Namespace:        req.Namespace,
		Description:      req.Description,
		Version:          req.Version,
		MinEngineVersion: req.MinEngineVersion,
		Authors:          req.Authors,
	})
	if err != nil {
		return nil, err
	}
	g.builder = b
	if req.EnableScripting {
		if err := b.EnableScripting(""); err != nil {
			return nil, err
		}
	}

	for i, raw := range req.Entities {
		def, err := concept.TransformEntity(raw)
		if err == nil {
			err = b.AddEntity(def)
		}
		g.report("entity", i, rawIdentifier(raw, def), err)
	}
	for i, raw := range req.Items {
		def, recipe, err := concept.TransformItem(raw)
		if err == nil {
			err = b.AddItem(def)
		}
		if err == nil && recipe != nil {
			if rerr := b.AddRecipeDefinition(recipe); rerr != nil {
				g.report("recipe", i, recipe.Identifier, rerr)
			}
		}
		g.report("item", i, rawIdentifier(raw, def), err)
	}
	for i, raw := range req.Blocks {
		def, err := concept.TransformBlock(raw)
		if err == nil {
			err = b.AddBlock(def)
		}
		g.report("block", i, rawIdentifier(raw, def), err)
	}
	for i, raw := range req.Recipes {
		g.report("recipe", i, "", b.AddRecipe(raw))
	}
	for i, lt := range req.LootTables {
		g.report("lootTable", i, lt.Path, b.AddLootTable(lt.Path, lt.Content))
	}
	for i, raw := range req.SpawnRules {
		g.report("spawnRules", i, "", b.AddSpawnRules(raw))
	}
	for i, raw := range req.Animations {
		g.report("animation", i, "", b.AddAnimation(raw))
	}
	if req.Scripts != nil && req.EnableScripting {
		if req.Scripts.Main != "" {
			g.report("script", 0, "main", b.AddScript("main", req.Scripts.Main))
		}
		for i, m := range req.Scripts.Modules {
			g.report("script", i+1, m.Name, b.AddScript(m.Name, m.Content))
		}
	}

	if req.Strict && len(g.failures) > 0 {
		return nil, errStrict
	}
	return b.Build()
}

// rawIdentifier names an artifact for reports, preferring the transformed
// definition.
func rawIdentifier(raw json.RawMessage, def any) string {
	switch d := def.(type) {
	case *iswaddon.EntityDefinition:
		if d != nil {
			return d.Identifier
		}
	case *iswaddon.ItemDefinition:
		if d != nil {
			return d.Identifier
		}
	case *iswaddon.BlockDefinition:
		if d != nil {
			return d.Identifier
		}
	}
	var probe struct {
		Identifier string `json:"identifier"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.Identifier
}

func (s *Server) decodeGenerate(w http.ResponseWriter, r *http.Request) (*GenerateRequest, bool) {
	req := &GenerateRequest{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Details: err.Error()})
		return nil, false
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, validationError(err))
		return nil, false
	}
	return req, true
}

// generate runs req and stores the result when a store is configured. The
// returned status is meaningful only with a non-nil error response.
func (s *Server) generate(r *http.Request, req *GenerateRequest, progress func(Event)) (*GenerateResponse, int, *errorResponse) {
	requestID := middleware.GetReqID(r.Context())
	logger := s.logger.With("requestId", requestID, "name", req.Name)
	logger.Info("generating addon",
		"entities", len(req.Entities), "items", len(req.Items), "blocks", len(req.Blocks),
		"recipes", len(req.Recipes), "scripting", req.EnableScripting)

	g := &generation{req: req, logger: logger, progress: progress}
	res, err := g.run()
	if err != nil {
		status, resp := classify(err)
		resp.Failures = g.failures
		return nil, status, &resp
	}

	addonID := s.newID()
	if s.store != nil {
		if _, err := s.store.Save(r.Context(), addonID, res); err != nil {
			logger.Error("saving build", "addonId", addonID, "err", err)
		}
	}
	logger.Info("addon generated", "addonId", addonID,
		"mcaddon", len(res.Addon), "bp", len(res.BehaviorPack), "rp", len(res.ResourcePack))

	return &GenerateResponse{
		Success:   true,
		AddonID:   addonID,
		RequestID: requestID,
		Downloads: Downloads{
			Mcaddon:      download(store.PartAddon, req.Name, res.Addon),
			BehaviorPack: download(store.PartBehavior, req.Name, res.BehaviorPack),
			ResourcePack: download(store.PartResource, req.Name, res.ResourcePack),
		},
		Metadata: res.Metadata,
		Failures: g.failures,
	}, http.StatusOK, nil
}

func download(part store.Part, name string, data []byte) Download {
	return Download{Filename: part.Filename(name), Data: data, MimeType: "application/octet-stream"}
}

func classify(err error) (int, errorResponse) {
	var (
		inputErr  *iswaddon.InputError
		misuseErr *iswaddon.MisuseError
		buildErr  *iswaddon.BuildError
	)
	switch {
	case errors.Is(err, errStrict):
		return http.StatusUnprocessableEntity, errorResponse{Error: "artifacts rejected", Details: err.Error()}
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, errorResponse{
			Error:      "invalid request",
			Details:    err.Error(),
			Field:      inputErr.Field,
			Identifier: inputErr.Identifier,
		}
	case errors.As(err, &misuseErr):
		return http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error()}
	case errors.As(err, &buildErr):
		return http.StatusInternalServerError, errorResponse{
			Error:   "failed to generate addon",
			Details: fmt.Sprintf("%s: %v", buildErr.Pack, buildErr.Err),
		}
	}
	return http.StatusInternalServerError, errorResponse{Error: "failed to generate addon", Details: err.Error()}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerate(w, r)
	if !ok {
		return
	}
	resp, status, errResp := s.generate(r, req, nil)
	if errResp != nil {
		s.writeError(w, r, status, *errResp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
