package exc

// Formula parsing and semantics
var (
	ErrFormula                 = NewKind("FormulaError", "ERR.DS_API.FORMULA", ClassSemantic, "formula error: %s")
	ErrParse                   = NewKind("ParseError", "ERR.DS_API.FORMULA.PARSE", ClassSyntax, "%s")
	ErrParseUnexpectedToken    = NewKind("ParseUnexpectedTokenError", "ERR.DS_API.FORMULA.PARSE.UNEXPECTED_TOKEN", ClassSyntax, "%s")
	ErrParseUnexpectedEOF      = NewKind("ParseUnexpectedEOFError", "ERR.DS_API.FORMULA.PARSE.UNEXPECTED_EOF", ClassSyntax, "%s")
	ErrParseInvalidLiteral     = NewKind("ParseInvalidLiteralError", "ERR.DS_API.FORMULA.PARSE.INVALID_LITERAL", ClassSyntax, "%s")
	ErrParseTooDeep            = NewKind("ParseRecursionError", "ERR.DS_API.FORMULA.PARSE.TOO_DEEP", ClassSyntax, "%s")
	ErrUnknownField            = NewKind("UnknownFieldInFormulaError", "ERR.DS_API.FORMULA.UNKNOWN_FIELD", ClassNotFound, "unknown field found in formula: %s")
	ErrUnknownFunction         = NewKind("UnknownFunctionError", "ERR.DS_API.FORMULA.UNKNOWN_FUNCTION", ClassSemantic, "unknown function %s")
	ErrTypeMismatch            = NewKind("TypeMismatchError", "ERR.DS_API.FORMULA.TYPE_MISMATCH", ClassSemantic, "invalid argument types for %s: %s")
	ErrFieldRecursion          = NewKind("FieldRecursionError", "ERR.DS_API.FORMULA.RECURSION", ClassSemantic, "recursion detected in field %q")
	ErrDoubleAggregation       = NewKind("DoubleAggregationError", "ERR.DS_API.VALIDATION.AGG.DOUBLE", ClassSemantic, "double aggregation is not allowed: %s")
	ErrInconsistentAggregation = NewKind("InconsistentAggregationError", "ERR.DS_API.FORMULA.VALIDATION.AGG.INCONSISTENT", ClassSemantic, "inconsistent aggregation among operands: %s")
	ErrAggregationOverWindow   = NewKind("AggregationOverWindowError", "ERR.DS_API.VALIDATION.AGG.WINDOW_FUNCTION", ClassSemantic, "window function cannot be used inside aggregation: %s")

	ErrNestedWindowFunction              = NewKind("NestedWindowFunctionError", "ERR.DS_API.VALIDATION.WIN_FUNC.NESTED", ClassSemantic, "nested window functions are not allowed: %s")
	ErrWindowFunctionWOAggregation       = NewKind("WindowFunctionWOAggregationError", "ERR.DS_API.VALIDATION.WIN_FUNC.NO_AGG", ClassSemantic, "window function requires an aggregate argument: %s")
	ErrWindowFunctionUnselectedDimension = NewKind("WindowFunctionUnselectedDimensionError", "ERR.DS_API.FORMULA.VALIDATION.WIN_FUNC.BFB_UNSELECTED_DIMENSION", ClassSemantic, "field %q in BEFORE FILTER BY is neither an aggregation nor a dimension in the query")
	ErrLodIncompatibleDimensions         = NewKind("LodIncompatibleDimensionsError", "ERR.DS_API.FORMULA.VALIDATION.LOD.INCOMPATIBLE_DIMENSIONS", ClassSemantic, "LOD dimensions are incompatible: %s")
	ErrLodInvalidTopLevelDimensions      = NewKind("LodInvalidTopLevelDimensionsError", "ERR.DS_API.FORMULA.VALIDATION.LOD.INVALID_TOPLEVEL_DIMENSIONS", ClassSemantic, "invalid top-level LOD dimension found in expression: %s")

	ErrUnsupportedFunctionForDialect = NewKind("UnsupportedFunctionForDialect", "ERR.DS_API.FORMULA.TRANSLATION.UNSUPPORTED_FUNCTION", ClassSemantic, "function %s is not supported for dialect %s")
	ErrTranslation                   = NewKind("TranslationError", "ERR.DS_API.FORMULA.TRANSLATION", ClassSemantic, "%s")
)

// Registry configuration
var (
	ErrRegistryFrozen         = NewKind("RegistryFrozenError", "ERR.DS_API.REGISTRY.FROZEN", ClassInternal, "registry is already built, cannot register %s")
	ErrAmbiguousVariant       = NewKind("AmbiguousTranslationVariantError", "ERR.DS_API.REGISTRY.AMBIGUOUS_VARIANT", ClassInternal, "ambiguous translation variants for %s in dialect %s: %s")
	ErrConflictingDefinition  = NewKind("ConflictingDefinitionError", "ERR.DS_API.REGISTRY.CONFLICTING_DEFINITION", ClassInternal, "conflicting definitions for %s: %s")
	ErrUnknownDialect         = NewKind("UnknownDialectError", "ERR.DS_API.DIALECT.UNKNOWN", ClassRequest, "unknown dialect %q")
	ErrUnknownMutatorFactory  = NewKind("UnknownMutatorFactoryError", "ERR.DS_API.REGISTRY.UNKNOWN_MUTATOR_FACTORY", ClassInternal, "no multi-query mutator factory for %s")
)

// Legend, blocks and pivot legend
var (
	ErrLegendItemReference      = NewKind("LegendItemReferenceError", "ERR.DS_API.LEGEND.ITEM_REFERENCE", ClassNotFound, "unknown legend item id %d")
	ErrNonUniqueLegendIDs       = NewKind("NonUniqueLegendIdsError", "ERR.DS_API.LEGEND.NON_UNIQUE_IDS", ClassRequest, "legend item id %d is used more than once")
	ErrUnsupportedRoleInLegend  = NewKind("UnsupportedRoleInLegend", "ERR.DS_API.LEGEND.UNSUPPORTED_ROLE", ClassRequest, "role spec %s does not match role %s")
	ErrNoRootBlock              = NewKind("NoRootBlockError", "ERR.DS_API.BLOCK.NO_ROOT", ClassRequest, "got no blocks with root placement")
	ErrMultipleRootBlocks       = NewKind("MultipleRootBlockError", "ERR.DS_API.BLOCK.MULTIPLE_ROOTS", ClassRequest, "got more than one block with root placement")
	ErrNonUniqueBlockIDs        = NewKind("NonUniqueBlockIdsError", "ERR.DS_API.BLOCK.NON_UNIQUE_IDS", ClassRequest, "block id %d is used more than once")
	ErrBlockParentReference     = NewKind("BlockParentReferenceError", "ERR.DS_API.BLOCK.PARENT_REFERENCE", ClassRequest, "block %d references unknown parent block %d")
	ErrPivotLegendItemReference = NewKind("PivotLegendItemReferenceError", "ERR.DS_API.PIVOT.LEGEND.ITEM_REFERENCE", ClassNotFound, "unknown pivot item id %d")
	ErrPivotMeasureNameRequired = NewKind("PivotMeasureNameRequired", "ERR.DS_API.PIVOT.MEASURE_NAME.REQUIRED", ClassRequest, "measure names must be used when pivoting multiple measures")
	ErrPivotSortingNotFound     = NewKind("PivotSortingRowOrColumnNotFound", "ERR.DS_API.PIVOT.SORTING.ROW_OR_COLUMN_NOT_FOUND", ClassRequest, "requested sorting row or column not found")
	ErrPivotSortingMeasures     = NewKind("PivotSortingAgainstMultipleMeasures", "ERR.DS_API.PIVOT.SORTING.AGAINST_MULTIPLE_MEASURES", ClassRequest, "if there are multiple measures, sorting can only be done along them")
	ErrPivotPagination          = NewKind("PivotPaginationError", "ERR.DS_API.PIVOT.PAGINATION", ClassRequest, "%s")
)

// Query compilation and planning
var (
	ErrEmptyQuery                  = NewKind("EmptyQuery", "ERR.DS_API.EMPTY_QUERY", ClassRequest, "attempted to execute an empty query")
	ErrInvalidGroupByConfiguration = NewKind("InvalidGroupByConfiguration", "ERR.DS_API.INVALID_GROUP_BY_CONFIGURATION", ClassRequest, "invalid GROUP BY configuration: %s")
	ErrMeasureFilterUnsupported    = NewKind("MeasureFilterUnsupportedError", "ERR.DS_API.FILTER.MEASURE_UNSUPPORTED", ClassRequest, "measure filter is unsupported for this type of query: %s")
	ErrFilterArgumentCount         = NewKind("FilterArgumentCountError", "ERR.DS_API.FILTER.ARGUMENT_COUNT_ERROR", ClassRequest, "invalid argument count for filter %s: %d")
	ErrFilterValue                 = NewKind("FilterValueError", "ERR.DS_API.FILTER.INVALID_VALUE", ClassRequest, "invalid value for filter on %s: %v")
	ErrParameterValue              = NewKind("ParameterValueError", "ERR.DS_API.PARAMETER.INVALID_VALUE", ClassRequest, "invalid value for parameter %s: %v")
	ErrFieldNotFound               = NewKind("FieldNotFoundError", "ERR.DS_API.FIELD.NOT_FOUND", ClassNotFound, "field %q not found in dataset")
	ErrInvalidRequest              = NewKind("GenericInvalidRequestError", "ERR.DS_API.INVALID_REQUEST", ClassRequest, "%s")
	ErrInvalidQueryStructure       = NewKind("InvalidQueryStructure", "ERR.DS_API.INVALID_QUERY_STRUCTURE", ClassPlanning, "failed to compile data query: %s")
	ErrPlanningBudgetExceeded      = NewKind("PlanningBudgetExceeded", "ERR.DS_API.PLANNING.BUDGET_EXCEEDED", ClassPlanning, "maximum multi-query iterations (%d) exceeded by splitter %s")
	ErrPlanningDependency          = NewKind("PlanningDependencyError", "ERR.DS_API.PLANNING.DEPENDENCY", ClassPlanning, "inconsistent query dependencies: %s")
	ErrInvalidPatch                = NewKind("InvalidQueryPatchError", "ERR.DS_API.PLANNING.INVALID_PATCH", ClassPlanning, "invalid multi-query patch: %s")
)

// Execution and caching
var (
	ErrResultRowCountLimitExceeded = NewKind("ResultRowCountLimitExceeded", "ERR.DS_API.ROW_COUNT_LIMIT", ClassExecution, "received too many result data rows (limit %d)")
	ErrExecutionCancelled          = NewKind("ExecutionCancelled", "ERR.DS_API.EXECUTION.CANCELLED", ClassExecution, "query execution was cancelled")
	ErrSourceQuery                 = NewKind("SourceQueryError", "ERR.DS_API.DB", ClassExecution, "query %s failed")
	ErrCompeng                     = NewKind("CompengError", "ERR.DS_API.COMPENG", ClassExecution, "%s")
	ErrInvalidCacheKey             = NewKind("InvalidCacheKeyError", "ERR.DS_API.CACHE.INVALID_KEY", ClassInternal, "%s")
)

// Configuration
var (
	ErrInvalidConfig = NewKind("InvalidConfigError", "ERR.DS_API.CONFIG.INVALID", ClassRequest, "invalid configuration: %s")
)
