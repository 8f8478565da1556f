package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"imscp/internal/logging"
)

// Result is the normalized view of a content package.
type Result struct {
	Identifier    string   `json:"identifier"`
	Metadata      Metadata `json:"metadata"`
	Organizations []*Item  `json:"organizations"`
	Problems      Problems `json:"problems"`
	// Dir is the extracted package root the relative paths refer to.
	Dir string `json:"-"`
}

// Leaves returns every leaf across all organizations in document order.
func (r *Result) Leaves() []*Item {
	var out []*Item
	for _, org := range r.Organizations {
		out = append(out, org.Leaves()...)
	}
	return out
}

// Options configures a Parser.
type Options struct {
	Filename        string
	BaseMode        BaseMode
	RecoverEncoding bool
	Logger          *slog.Logger
}

// Parser turns extracted package directories into Results.
type Parser struct {
	opts   Options
	logger *slog.Logger
}

// NewParser constructs a parser with the supplied options.
func NewParser(opts Options) *Parser {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}
	if opts.BaseMode == "" {
		opts.BaseMode = BaseJoin
	}
	return &Parser{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "manifest"),
	}
}

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// ExtractFromZip unpacks archivePath into workDir and parses the result.
func (p *Parser) ExtractFromZip(ctx context.Context, extractor Extractor, archivePath, workDir string) (*Result, error) {
	p.logger.Info("extracting package",
		logging.String("archive", archivePath),
		logging.String("dir", workDir),
		logging.String(logging.FieldEventType, "package_extract"),
	)
	if err := extractor.Extract(ctx, archivePath, workDir); err != nil {
		return nil, fmt.Errorf("extract package: %w", err)
	}
	return p.ExtractFromDir(workDir)
}

// ExtractFromDir parses the manifest in dir, walks every organization and
// resolves its leaves. Only an unreadable or unparseable manifest is an error;
// item-level issues are returned in Result.Problems.
func (p *Parser) ExtractFromDir(dir string) (*Result, error) {
	doc, err := LoadDocument(dir, p.opts.Filename, p.opts.RecoverEncoding, p.logger)
	if err != nil {
		return nil, err
	}
	result := Build(doc, p.opts.BaseMode, p.logger)
	result.Dir = dir

	p.logger.Info("manifest parsed",
		logging.String(logging.FieldPackage, result.Identifier),
		logging.Int("organizations", len(result.Organizations)),
		logging.Int("leaves", len(result.Leaves())),
		logging.Int("problems", len(result.Problems)),
		logging.String(logging.FieldEventType, "manifest_parsed"),
	)
	return result, nil
}

// Build produces a Result from an already parsed document.
func Build(doc *Document, mode BaseMode, logger *slog.Logger) *Result {
	root := doc.Root
	result := &Result{
		Identifier:    attrValue(root, "identifier"),
		Metadata:      Metadata{},
		Organizations: []*Item{},
	}
	if metaElem := firstChild(root, "metadata"); metaElem != nil {
		result.Metadata = ExtractMetadata(metaElem)
	}

	catalog, problems := BuildCatalog(firstChild(root, "resources"))
	result.Problems = append(result.Problems, problems...)
	if logger != nil {
		logger.Debug("resource catalog built",
			logging.Int("resources", catalog.Len()),
			logging.Int("duplicates", len(problems)),
		)
	}

	resolver := NewResolver(catalog, mode, logger)
	for i, orgElem := range childrenNamed(firstChild(root, "organizations"), "organization") {
		locator := fmt.Sprintf("organization[%d]", i)
		tree, walkProblems := WalkItems(orgElem, locator)
		result.Problems = append(result.Problems, walkProblems...)
		resolved, resolveProblems := resolver.Resolve(tree, locator)
		result.Problems = append(result.Problems, resolveProblems...)
		result.Organizations = append(result.Organizations, resolved)
	}
	return result
}
