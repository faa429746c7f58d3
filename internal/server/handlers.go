package server

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/crop-detect/internal/config"
	"github.com/ironsheep/crop-detect/internal/detection"
	"github.com/ironsheep/crop-detect/internal/imaging"
	"github.com/ironsheep/crop-detect/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "crop_detect", "image_info").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tool":  params.Name,
			"error": err,
		}).Warn("Tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "crop_detect":
		return s.handleCropDetect(args)
	case "detection_config":
		return s.cfg, nil
	case "color_sample":
		return s.handleColorSample(args)
	case "image_info":
		return s.handleImageInfo(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Detection Handlers ===

type cropDetectArgs struct {
	Path         string   `json:"path"`
	OutputDir    string   `json:"output_dir"`
	MinArea      *float64 `json:"min_area"`
	MinPerimeter *float64 `json:"min_perimeter"`
	WriteEach    bool     `json:"write_each"`
	IncludeImage bool     `json:"include_image"`
	ImageScale   float64  `json:"image_scale"`
}

// CropDetectResult is the crop_detect tool's response.
type CropDetectResult struct {
	Count        int                   `json:"count"`
	Areas        []float64             `json:"areas"`
	Detections   []detection.Detection `json:"detections"`
	ContourCount int                   `json:"contour_count"`
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Artifacts    []pipeline.Artifact   `json:"artifacts,omitempty"`

	// AnnotatedImage is set when include_image was requested.
	AnnotatedImage *imaging.EncodedImage `json:"annotated_image,omitempty"`
}

func (s *Server) handleCropDetect(args json.RawMessage) (interface{}, error) {
	var a cropDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.ImageScale == 0 {
		a.ImageScale = 1.0
	}

	cfg := s.cfg
	if a.MinArea != nil {
		cfg.Filter.MinArea = *a.MinArea
	}
	if a.MinPerimeter != nil {
		cfg.Filter.MinPerimeter = *a.MinPerimeter
	}
	if a.WriteEach {
		cfg.Output.AnnotatedWrites = config.WriteEach
	}

	// Without an output directory nothing is written.
	var store imaging.ArtifactStore = imaging.NopStore{}
	if a.OutputDir != "" {
		cfg.Output.Dir = a.OutputDir
		store = imaging.NewDiskStore(a.OutputDir)
	}

	p, err := pipeline.New(cfg,
		pipeline.WithDecoder(s.cache),
		pipeline.WithStore(store),
		pipeline.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	result, err := p.Run(a.Path)
	if err != nil {
		return nil, err
	}

	out := &CropDetectResult{
		Count:        result.Count(),
		Areas:        result.Areas(),
		Detections:   result.Detections,
		ContourCount: result.ContourCount,
		Width:        result.Width,
		Height:       result.Height,
		Artifacts:    result.Artifacts,
	}
	if a.IncludeImage {
		enc, err := imaging.EncodePNG(result.Annotated, a.ImageScale)
		if err != nil {
			return nil, err
		}
		out.AnnotatedImage = enc
	}
	return out, nil
}

type colorSampleArgs struct {
	Path     string                 `json:"path"`
	Points   []imaging.LabeledPoint `json:"points"`
	Smoothed bool                   `json:"smoothed"`
}

// ColorSampleResult is the color_sample tool's response.
type ColorSampleResult struct {
	Samples    []detection.ColorSample `json:"samples"`
	ColorRange config.ColorRange       `json:"color_range"`
}

func (s *Server) handleColorSample(args json.RawMessage) (interface{}, error) {
	var a colorSampleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if len(a.Points) == 0 {
		return nil, fmt.Errorf("at least one point is required")
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	samples, err := detection.NewStages(nil, s.cfg).SampleColors(img, a.Points, a.Smoothed)
	if err != nil {
		return nil, err
	}
	return &ColorSampleResult{Samples: samples, ColorRange: s.cfg.ColorRange}, nil
}

// === Basic Image Information Handlers ===

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
