// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/digest/internal/aggregator"
	"github.com/temirov/digest/internal/config"
	"github.com/temirov/digest/internal/digest"
	"github.com/temirov/digest/internal/selection"
	"github.com/temirov/digest/internal/services/clipboard"
	"github.com/temirov/digest/internal/tokenizer"
	"github.com/temirov/digest/internal/types"
	"github.com/temirov/digest/internal/utils"
	"github.com/temirov/digest/internal/walker"
)

const (
	exclusionFlagName      = "exclude"
	exclusionFlagShorthand = "e"
	extensionsFlagName     = "ext"
	modelFlagName          = "model"
	outputFlagName         = "output"
	copyFlagName           = "copy"
	allFlagName            = "all"

	defaultPath          = "."
	rootUse              = "digest"
	rootShortDescription = "digest command line interface"
	rootLongDescription  = `digest combines selected repository files into a single document.
It renders an annotated directory tree with token counts, aggregates
subtree token totals, and composes a digest embedding each selected
file in a fenced code block.`

	treeUse    = "tree [path]"
	combineUse = "combine [paths...]"
	countUse   = "count [path]"

	combineCommandName = "combine"

	treeAlias    = "t"
	combineAlias = "c"
	countAlias   = "cnt"

	treeShortDescription    = "display annotated directory tree with token counts (" + treeAlias + ")"
	combineShortDescription = "combine selected files into a digest document (" + combineAlias + ")"
	countShortDescription   = "aggregate token totals for a directory (" + countAlias + ")"

	// treeLongDescription provides detailed help for the tree command.
	treeLongDescription = `List a directory tree with per-file token counts and a subtree total.
Excluded entries are shown but marked; binary and unreadable files are annotated.`
	// combineLongDescription provides detailed help for the combine command.
	combineLongDescription = `Compose the digest document from files and directories.
Directories are expanded into their files through the filtered walker.
Use --copy to place the result on the clipboard or --output to write a file.`
	// countLongDescription provides detailed help for the count command.
	countLongDescription = `Compute the aggregated token total for a directory in the background.
Use --all for a per-subdirectory breakdown computed concurrently.`

	exclusionFlagDescription  = "comma-separated exclusion patterns (replaces the default set)"
	extensionsFlagDescription = "comma-separated extension filter (empty matches all files)"
	modelFlagDescription      = "tokenizer model to use for token counting"
	outputFlagDescription     = "write the digest to the given file"
	copyFlagDescription       = "copy the digest to the system clipboard"
	allFlagDescription        = "aggregate each top-level subdirectory concurrently"

	aggregationConcurrencyLimit = 4

	warningFileErrorFormat  = "Warning: %s: %v"
	warningClipboardMessage = "digest copied to clipboard"
	totalTokensFormat       = "Total tokens: %d"
	directoryTotalFormat    = "%s: %d tokens"
	cancelledStateMessage   = "aggregation cancelled; totals incomplete"

	errorNoValidFiles           = "no valid files selected"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
)

// commandOptions carries the per-invocation settings resolved from flags and
// configuration files.
type commandOptions struct {
	excludeList   string
	extensionList string
	tokenModel    string
	outputPath    string
	copyToClip    bool
	aggregateAll  bool
}

// NewRootCommand builds the digest root command with its subcommands.
func NewRootCommand(logger *zap.Logger) *cobra.Command {
	if logger == nil {
		logger = zap.NewNop()
	}

	options := &commandOptions{}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().StringVarP(&options.excludeList, exclusionFlagName, exclusionFlagShorthand, "", exclusionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&options.extensionList, extensionsFlagName, "", extensionsFlagDescription)
	rootCommand.PersistentFlags().StringVar(&options.tokenModel, modelFlagName, "", modelFlagDescription)

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runTreeCommand(logger, options, arguments)
		},
	}

	combineCommand := &cobra.Command{
		Use:     combineUse,
		Aliases: []string{combineAlias},
		Short:   combineShortDescription,
		Long:    combineLongDescription,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runCombineCommand(logger, options, arguments)
		},
	}
	combineCommand.Flags().StringVarP(&options.outputPath, outputFlagName, "o", "", outputFlagDescription)
	registerCopyFlag(combineCommand.Flags(), &options.copyToClip)

	countCommand := &cobra.Command{
		Use:     countUse,
		Aliases: []string{countAlias},
		Short:   countShortDescription,
		Long:    countLongDescription,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runCountCommand(logger, options, arguments)
		},
	}
	countCommand.Flags().BoolVar(&options.aggregateAll, allFlagName, false, allFlagDescription)

	rootCommand.AddCommand(treeCommand, combineCommand, countCommand)
	return rootCommand
}

// NormalizeArguments prepares raw command line arguments for execution,
// rewriting lenient copy flag spellings into canonical form.
func NormalizeArguments(arguments []string) []string {
	return normalizeCopyFlagArguments(arguments)
}

// resolvedSettings is the merged view of configuration files and flags.
type resolvedSettings struct {
	matcher    *walker.ExclusionMatcher
	extensions []string
	model      string
	rootPath   string
}

// resolveSettings merges configuration files with command flags. Flags win;
// the exclusion list has replace-all semantics at every layer.
func resolveSettings(options *commandOptions, arguments []string) (resolvedSettings, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return resolvedSettings{}, fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}

	applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{WorkingDirectory: workingDirectory})
	if configurationError != nil {
		return resolvedSettings{}, configurationError
	}

	excludePatterns := walker.DefaultExcludePatterns
	if len(applicationConfiguration.Exclude) > 0 {
		excludePatterns = applicationConfiguration.Exclude
	}
	if strings.TrimSpace(options.excludeList) != "" {
		excludePatterns = utils.SplitCommaList(options.excludeList)
	}

	extensions := applicationConfiguration.Extensions
	if strings.TrimSpace(options.extensionList) != "" {
		extensions = utils.SplitCommaList(options.extensionList)
	}

	model := applicationConfiguration.Tokens.Model
	if options.tokenModel != "" {
		model = options.tokenModel
	}

	rootPath := applicationConfiguration.Root
	if len(arguments) > 0 {
		rootPath = arguments[0]
	}
	if rootPath == "" {
		rootPath = defaultPath
	}

	return resolvedSettings{
		matcher:    walker.NewExclusionMatcher(excludePatterns),
		extensions: extensions,
		model:      model,
		rootPath:   rootPath,
	}, nil
}

// runTreeCommand materializes the full tree through the selection state
// machine, aggregates token counts in the background, and renders the
// annotated listing with a checked-set total.
func runTreeCommand(logger *zap.Logger, options *commandOptions, arguments []string) error {
	settings, settingsError := resolveSettings(options, arguments)
	if settingsError != nil {
		return settingsError
	}

	treeWalker, walkerError := walker.NewWalker(settings.rootPath, settings.matcher, settings.extensions, logger)
	if walkerError != nil {
		return walkerError
	}

	stateMachine := selection.NewStateMachine(treeWalker)
	for _, rootNode := range stateMachine.RootNodes() {
		stateMachine.Check(rootNode.Path)
	}

	tokenCounter, _, counterError := tokenizer.NewCounter(settings.model)
	if counterError != nil {
		return counterError
	}

	tokenAggregator, aggregatorError := aggregator.New(tokenCounter, treeWalker.Root(), settings.matcher, settings.extensions, logger)
	if aggregatorError != nil {
		return aggregatorError
	}
	aggregationSession := aggregator.NewSession()
	tokenAggregator.Request(aggregationSession, treeWalker.Root())
	tokenAggregator.Drain(aggregationSession, aggregator.DrainHandlers{
		OnProgress: stateMachine.ApplyTokenCount,
		OnFileError: func(path string, fileError error) {
			logger.Warn(fmt.Sprintf(warningFileErrorFormat, path, fileError))
		},
	})

	fmt.Println(filepath.Base(treeWalker.Root()))
	printAnnotatedNodes(stateMachine.RootNodes(), "")
	fmt.Println()
	fmt.Printf(totalTokensFormat+"\n", stateMachine.TotalTokens())
	return nil
}

// printAnnotatedNodes renders walker nodes with box-drawing connectors and
// per-node annotations.
func printAnnotatedNodes(nodes []*types.Node, linePrefix string) {
	for nodeIndex, node := range nodes {
		isLastNode := nodeIndex == len(nodes)-1
		connector := "├── "
		childPrefix := linePrefix + "│   "
		if isLastNode {
			connector = "└── "
			childPrefix = linePrefix + "    "
		}

		fmt.Println(linePrefix + connector + annotateNode(node))
		if node.Kind == types.NodeKindFolder {
			printAnnotatedNodes(node.Children, childPrefix)
		}
	}
}

func annotateNode(node *types.Node) string {
	switch node.Status {
	case types.NodeStatusExcluded:
		return node.Name + " (excluded)"
	case types.NodeStatusBinary:
		return node.Name + " (binary)"
	case types.NodeStatusUnreadable:
		return node.Name + " (unreadable: " + node.ErrText + ")"
	case types.NodeStatusSkippedCycle:
		return node.Name
	}
	if node.Kind == types.NodeKindSymlink {
		if node.Target != "" {
			return node.Name + " -> " + node.Target
		}
		return node.Name + " (symlink)"
	}
	if node.Kind == types.NodeKindFile && node.TokenCount != nil {
		return fmt.Sprintf("%s [%d]", node.Name, node.KnownTokenCount())
	}
	return node.Name
}

// runCombineCommand expands the provided paths into a file selection and
// composes the digest, writing it to the clipboard, a file, or stdout.
func runCombineCommand(logger *zap.Logger, options *commandOptions, arguments []string) error {
	settings, settingsError := resolveSettings(options, nil)
	if settingsError != nil {
		return settingsError
	}

	selectedPaths := arguments
	if len(selectedPaths) == 0 {
		selectedPaths = []string{settings.rootPath}
	}

	selectedFiles, expandError := expandSelection(logger, selectedPaths, settings)
	if expandError != nil {
		return expandError
	}
	if len(selectedFiles) == 0 {
		return fmt.Errorf(errorNoValidFiles)
	}

	composer := digest.NewComposer(logger)
	document, composeError := composer.Compose(selectedFiles, settings.matcher)
	if composeError != nil {
		return composeError
	}

	if options.copyToClip {
		if copyError := clipboard.NewService().Copy(document); copyError != nil {
			return fmt.Errorf("copy digest to clipboard: %w", copyError)
		}
		logger.Info(warningClipboardMessage)
		return nil
	}
	if options.outputPath != "" {
		if writeError := os.WriteFile(options.outputPath, []byte(document), 0o644); writeError != nil {
			return fmt.Errorf("write digest to %s: %w", options.outputPath, writeError)
		}
		return nil
	}
	fmt.Print(document)
	return nil
}

// expandSelection resolves a mixed list of file and directory arguments into
// concrete file paths. Directories expand through the filtered walker with
// binary files skipped; explicitly named files are kept as given so read
// failures surface inline in the digest.
func expandSelection(logger *zap.Logger, selectedPaths []string, settings resolvedSettings) ([]string, error) {
	var selectedFiles []string
	for _, selectedPath := range selectedPaths {
		pathInformation, statError := os.Stat(selectedPath)
		if statError != nil || !pathInformation.IsDir() {
			selectedFiles = append(selectedFiles, selectedPath)
			continue
		}

		directoryWalker, walkerError := walker.NewWalker(selectedPath, settings.matcher, settings.extensions, logger)
		if walkerError != nil {
			return nil, walkerError
		}
		for _, relativeFilePath := range directoryWalker.WalkAll() {
			absoluteFilePath := filepath.Join(directoryWalker.Root(), filepath.FromSlash(relativeFilePath))
			if utils.IsFileBinary(absoluteFilePath) {
				continue
			}
			selectedFiles = append(selectedFiles, absoluteFilePath)
		}
	}
	return selectedFiles, nil
}

// runCountCommand aggregates token totals in the background with cooperative
// cancellation wired to the interrupt signal.
func runCountCommand(logger *zap.Logger, options *commandOptions, arguments []string) error {
	settings, settingsError := resolveSettings(options, arguments)
	if settingsError != nil {
		return settingsError
	}

	treeWalker, walkerError := walker.NewWalker(settings.rootPath, settings.matcher, settings.extensions, logger)
	if walkerError != nil {
		return walkerError
	}

	tokenCounter, _, counterError := tokenizer.NewCounter(settings.model)
	if counterError != nil {
		return counterError
	}

	tokenAggregator, aggregatorError := aggregator.New(tokenCounter, treeWalker.Root(), settings.matcher, settings.extensions, logger)
	if aggregatorError != nil {
		return aggregatorError
	}

	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interruptChannel)
	go func() {
		<-interruptChannel
		tokenAggregator.Cancel()
	}()

	aggregationSession := aggregator.NewSession()
	if options.aggregateAll {
		tokenAggregator.RequestAll(aggregationSession, listSubdirectories(treeWalker), aggregationConcurrencyLimit)
	} else {
		tokenAggregator.Request(aggregationSession, treeWalker.Root())
	}

	tokenAggregator.Drain(aggregationSession, aggregator.DrainHandlers{
		OnFileError: func(path string, fileError error) {
			logger.Warn(fmt.Sprintf(warningFileErrorFormat, path, fileError))
		},
	})

	cancelled := false
	if options.aggregateAll {
		for _, directoryPath := range listSubdirectories(treeWalker) {
			if total, known := aggregationSession.DirectoryTotal(directoryPath); known {
				fmt.Printf(directoryTotalFormat+"\n", utils.RelativePathOrSelf(directoryPath, treeWalker.Root()), total)
			} else {
				cancelled = true
			}
		}
	} else if aggregationSession.State(treeWalker.Root()) != aggregator.StateDone {
		cancelled = true
	}

	if cancelled {
		logger.Warn(cancelledStateMessage)
	}
	fmt.Printf(totalTokensFormat+"\n", aggregationSession.TotalTokens())
	return nil
}

// listSubdirectories returns the non-excluded immediate subdirectories of the
// walker's root, in listing order.
func listSubdirectories(treeWalker *walker.Walker) []string {
	treeWalker.ResetSession()
	var subdirectoryPaths []string
	for _, node := range treeWalker.ListChildren(treeWalker.Root()) {
		if node.Kind == types.NodeKindFolder && node.Status == types.NodeStatusNormal {
			subdirectoryPaths = append(subdirectoryPaths, node.Path)
		}
	}
	return subdirectoryPaths
}
