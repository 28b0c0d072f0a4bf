package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
)

// maxPreviewRows caps the sample returned by the preview endpoint.
const maxPreviewRows = 5

// maxRequestBatchSize caps the per-request batchSize override.
const maxRequestBatchSize = 100

type ImportHandler struct {
	pipeline  *importer.Pipeline
	batchSize int
	maxBytes  int64
	log       *logrus.Entry
}

func NewImportHandler(pipeline *importer.Pipeline, batchSize int, maxBytes int64) *ImportHandler {
	return &ImportHandler{
		pipeline:  pipeline,
		batchSize: batchSize,
		maxBytes:  maxBytes,
		log:       logrus.WithField("component", "import-handler"),
	}
}

// ImportProducts runs a catalog import from an uploaded CSV or XLSX file.
// POST /api/v1/catalog/import
//
// Form fields:
//
//	file         the upload (required)
//	validateOnly "true" to dry-run the parse/map phase
//	batchSize    per-request batch size, clamped to 1..100
//	mapping      JSON array of {sourceColumn, destination} overriding the
//	             auto-detected column mapping
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	parsed, ok := h.parseUpload(c)
	if !ok {
		return
	}

	opts := importer.Options{
		TenantID:     tenantID,
		BatchSize:    requestBatchSize(c, h.batchSize),
		ValidateOnly: c.PostForm("validateOnly") == "true" || c.Query("validateOnly") == "true",
	}

	if mappingJSON := c.PostForm("mapping"); mappingJSON != "" {
		var mappings []models.FieldMapping
		if err := json.Unmarshal([]byte(mappingJSON), &mappings); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_MAPPING", "mapping must be a JSON array of column mappings")
			return
		}
		opts.Mappings = mappings
	}

	result := h.pipeline.Run(c.Request.Context(), parsed, opts)

	h.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"format":    result.Format,
		"rows":      result.TotalRows,
		"created":   result.Stats.ProductsCreated,
		"updated":   result.Stats.ProductsUpdated,
		"failed":    result.Stats.ProductsFailed,
	}).Info("Import run finished")

	status := http.StatusOK
	if !result.Success && result.Stats.TotalProducts == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// PreviewImport parses an upload, detects its format and returns the headers,
// suggested mapping, the mappable destination fields and a few sample rows
// without writing anything. For an unknown format the operator builds a
// manual mapping from the destination-field list.
// POST /api/v1/catalog/import/preview
func (h *ImportHandler) PreviewImport(c *gin.Context) {
	parsed, ok := h.parseUpload(c)
	if !ok {
		return
	}

	format := importer.DetectFormat(parsed.Headers)
	preview := models.ImportPreview{
		Success:           true,
		Format:            format,
		Headers:           parsed.Headers,
		SuggestedMapping:  importer.AutoMapping(format, parsed.Headers),
		DestinationFields: models.DestinationFields(),
		TotalRows:         len(parsed.Records),
	}
	for i, rec := range parsed.Records {
		if i >= maxPreviewRows {
			break
		}
		preview.SampleRows = append(preview.SampleRows, rec.Values)
	}

	c.JSON(http.StatusOK, preview)
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/catalog/import/template?format=json|csv|xlsx
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.StandardImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// parseUpload reads the "file" form field and parses it by extension. On
// failure it writes the error response and returns ok=false.
func (h *ImportHandler) parseUpload(c *gin.Context) (*importer.ParsedFile, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Upload a CSV or XLSX file in the 'file' field")
		return nil, false
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d byte limit", h.maxBytes))
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_UNREADABLE", "Could not read the uploaded file")
		return nil, false
	}
	defer file.Close()

	parsed, err := parseByExtension(file, fileHeader.Filename)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "PARSE_FAILED", err.Error())
		return nil, false
	}
	return parsed, true
}

// requestBatchSize reads the per-request batchSize override, clamped to
// 1..maxRequestBatchSize. The configured size applies when absent or invalid.
func requestBatchSize(c *gin.Context, fallback int) int {
	raw := c.PostForm("batchSize")
	if raw == "" {
		raw = c.Query("batchSize")
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 {
		return fallback
	}
	if size > maxRequestBatchSize {
		return maxRequestBatchSize
	}
	return size
}

func parseByExtension(file multipart.File, filename string) (*importer.ParsedFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return importer.ParseXLSX(file)
	case ".csv", ".txt", "":
		return importer.ParseCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template with an
// example row and a documentation sheet.
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText += " *"
		}
		f.SetCellValue(sheetName, cell, headerText)
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		exampleCell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, exampleCell, col.Example)
	}

	docsSheet := "Column Reference"
	f.NewSheet(docsSheet)
	f.SetCellValue(docsSheet, "A1", "Column")
	f.SetCellValue(docsSheet, "B1", "Required")
	f.SetCellValue(docsSheet, "C1", "Type")
	f.SetCellValue(docsSheet, "D1", "Description")
	for i, col := range template.Columns {
		row := i + 2
		f.SetCellValue(docsSheet, fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue(docsSheet, fmt.Sprintf("B%d", row), col.Required)
		f.SetCellValue(docsSheet, fmt.Sprintf("C%d", row), col.Type)
		f.SetCellValue(docsSheet, fmt.Sprintf("D%d", row), col.Description)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.log.WithError(err).Error("Failed to write XLSX template")
	}
}

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: code, Message: message},
	})
}
