package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Detection
		{
			Name:        "crop_detect",
			Description: "Detect color-distinct plant blobs in an image. Returns the area, perimeter and bounding box of every accepted blob in discovery order, and optionally the annotated image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Optional directory for the diagnostic images. Nothing is written when omitted.",
					},
					"min_area": map[string]interface{}{
						"type":        "number",
						"description": "Minimum contour area in square pixels. Default 600",
						"default":     600,
					},
					"min_perimeter": map[string]interface{}{
						"type":        "number",
						"description": "Minimum contour perimeter in pixels. Default 30",
						"default":     30,
					},
					"write_each": map[string]interface{}{
						"type":        "boolean",
						"description": "Rewrite the annotated image after every rectangle instead of once. Default false",
						"default":     false,
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the annotated image as base64-encoded PNG. Default false",
						"default":     false,
					},
					"image_scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the returned image. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "detection_config",
			Description: "Return the detection parameters the server uses: blur kernel, HSV range, morphology, thresholds, colors and artifact names.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "color_sample",
			Description: "Sample pixel colors and report their RGB and HSV values (hue 0-179) and whether each falls inside the detection color range. Use smoothed=true to read the blurred image the segmenter thresholds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"points": map[string]interface{}{
						"type":        "array",
						"description": "Pixels to sample",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
					},
					"smoothed": map[string]interface{}{
						"type":        "boolean",
						"description": "Sample the Gaussian-smoothed image instead of the original. Default false",
						"default":     false,
					},
				},
				"required": []string{"path", "points"},
			},
		},

		// Basic Image Information
		{
			Name:        "image_info",
			Description: "Load an image file and return its dimensions, format, color depth and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
