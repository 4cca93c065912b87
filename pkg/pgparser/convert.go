package pgparser

import (
	"strings"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/bytebase/parser/postgresql"
)

// converter walks a parse tree and builds typed nodes for top-level
// statements. A statement that yields no typed node becomes Unrecognized.
type converter struct {
	*parser.BasePostgreSQLParserListener

	tokens *antlr.CommonTokenStream
	nodes  []Node
	// mark is len(nodes) when the current top-level statement was entered.
	mark int
}

// Convert builds the typed nodes of every top-level statement in a parse result.
func Convert(result *ParseResult) []Node {
	c := &converter{
		BasePostgreSQLParserListener: &parser.BasePostgreSQLParserListener{},
		tokens:                       result.Tokens,
	}
	antlr.ParseTreeWalkerDefault.Walk(c, result.Tree)
	return c.nodes
}

// isTopLevel checks if the context is at the top level of the parse tree.
func isTopLevel(ctx antlr.Tree) bool {
	if ctx == nil {
		return true
	}

	switch ctx := ctx.(type) {
	case *parser.RootContext, *parser.StmtblockContext:
		return true
	case *parser.StmtmultiContext, *parser.StmtContext:
		return isTopLevel(ctx.GetParent())
	default:
		return false
	}
}

func (c *converter) EnterStmt(ctx *parser.StmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	c.mark = len(c.nodes)
}

func (c *converter) ExitStmt(ctx *parser.StmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	if len(c.nodes) == c.mark && ctx.GetChildCount() > 0 {
		c.nodes = append(c.nodes, &Unrecognized{Text: c.text(ctx)})
	}
}

func (c *converter) EnterCreatestmt(ctx *parser.CreatestmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}

	allNames := ctx.AllQualified_name()
	if len(allNames) == 0 {
		return
	}

	node := &CreateTable{
		Kind:        ObjectTable,
		Table:       qualifiedName(allNames[0]),
		Partitioned: ctx.Optpartitionspec() != nil,
	}
	if ctx.PARTITION() != nil && len(allNames) > 1 {
		node.PartitionOf = qualifiedName(allNames[1])
	}
	if list := ctx.Opttableelementlist(); list != nil && list.Tableelementlist() != nil {
		for _, elem := range list.Tableelementlist().AllTableelement() {
			switch {
			case elem.ColumnDef() != nil:
				node.Columns = append(node.Columns, c.columnDef(elem.ColumnDef()))
			case elem.Tableconstraint() != nil:
				node.Constraints = append(node.Constraints, tableConstraint(elem.Tableconstraint()))
			}
		}
	}
	// PARTITION OF and OF type take their columns elsewhere. Only the
	// table-level constraints of their element list are kept.
	if list := ctx.Opttypedtableelementlist(); list != nil && list.Typedtableelementlist() != nil {
		for _, elem := range list.Typedtableelementlist().AllTypedtableelement() {
			if elem.Tableconstraint() != nil {
				node.Constraints = append(node.Constraints, tableConstraint(elem.Tableconstraint()))
			}
		}
	}
	c.nodes = append(c.nodes, node)
}

func (c *converter) EnterCreateasstmt(ctx *parser.CreateasstmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	target := ctx.Create_as_target()
	if target == nil || target.Qualified_name() == nil {
		return
	}
	c.nodes = append(c.nodes, &CreateTable{
		Kind:    ObjectTable,
		Table:   qualifiedName(target.Qualified_name()),
		Columns: columnNames(target.Opt_column_list()),
	})
}

func (c *converter) EnterCreatematviewstmt(ctx *parser.CreatematviewstmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	target := ctx.Create_mv_target()
	if target == nil || target.Qualified_name() == nil {
		return
	}
	c.nodes = append(c.nodes, &CreateTable{
		Kind:    ObjectMaterializedView,
		Table:   qualifiedName(target.Qualified_name()),
		Columns: columnNames(target.Opt_column_list()),
	})
}

func (c *converter) EnterViewstmt(ctx *parser.ViewstmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	if ctx.Qualified_name() == nil {
		return
	}

	node := &CreateTable{
		Kind:      ObjectView,
		Table:     qualifiedName(ctx.Qualified_name()),
		OrReplace: ctx.REPLACE() != nil,
	}
	if ctx.Columnlist() != nil {
		// RECURSIVE VIEW requires its column list.
		node.Columns = columnList(ctx.Columnlist())
	} else {
		node.Columns = columnNames(ctx.Opt_column_list())
	}
	c.nodes = append(c.nodes, node)
}

func (c *converter) EnterAltertablestmt(ctx *parser.AltertablestmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	if ctx.TABLE() == nil || ctx.Relation_expr() == nil || ctx.Relation_expr().Qualified_name() == nil {
		return
	}
	if ctx.Alter_table_cmds() == nil {
		return
	}

	table := qualifiedName(ctx.Relation_expr().Qualified_name())
	for _, cmd := range ctx.Alter_table_cmds().AllAlter_table_cmd() {
		c.nodes = append(c.nodes, c.alterTableCmd(table, cmd))
	}
}

func (c *converter) alterTableCmd(table QualifiedName, cmd parser.IAlter_table_cmdContext) Node {
	allColids := cmd.AllColid()
	column := ""
	if len(allColids) > 0 {
		column = NormalizePostgreSQLColid(allColids[0])
	}

	switch {
	case cmd.ADD_P() != nil && cmd.ColumnDef() != nil:
		return &AlterTableAddColumn{Table: table, Column: c.columnDef(cmd.ColumnDef())}
	case cmd.ADD_P() != nil && cmd.Tableconstraint() != nil:
		return &AlterTableAddConstraint{Table: table, Constraint: tableConstraint(cmd.Tableconstraint())}
	case cmd.ALTER() != nil && cmd.SET() != nil && cmd.NOT() != nil && cmd.NULL_P() != nil && column != "":
		return &AlterTableAlterColumnSetNotNull{Table: table, Column: column}
	case cmd.ALTER() != nil && cmd.DROP() != nil && cmd.NOT() != nil && cmd.NULL_P() != nil && column != "":
		return &AlterTableAlterColumnDropNotNull{Table: table, Column: column}
	case cmd.ALTER() != nil && cmd.TYPE_P() != nil && cmd.Typename() != nil && column != "":
		return &AlterTableAlterColumnType{Table: table, Column: column, Type: typeName(cmd.Typename())}
	case cmd.ALTER() == nil && cmd.DROP() != nil && column != "":
		// DROP CONSTRAINT names its target through a name rule, not a colid.
		return &AlterTableDropColumn{Table: table, Column: column}
	}
	return &Unrecognized{Text: c.text(cmd)}
}

func (c *converter) EnterRenamestmt(ctx *parser.RenamestmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	if ctx.TABLE() == nil || ctx.CONSTRAINT() != nil || ctx.TO() == nil {
		return
	}
	if ctx.Relation_expr() == nil || ctx.Relation_expr().Qualified_name() == nil {
		return
	}

	table := qualifiedName(ctx.Relation_expr().Qualified_name())
	allNames := ctx.AllName()
	switch len(allNames) {
	case 1:
		c.nodes = append(c.nodes, &RenameRelation{
			Table:   table,
			NewName: NormalizePostgreSQLName(allNames[0]),
		})
	case 2:
		c.nodes = append(c.nodes, &RenameColumn{
			Table:   table,
			Column:  NormalizePostgreSQLName(allNames[0]),
			NewName: NormalizePostgreSQLName(allNames[1]),
		})
	}
}

func (c *converter) EnterIndexstmt(ctx *parser.IndexstmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}
	if ctx.Relation_expr() == nil || ctx.Relation_expr().Qualified_name() == nil {
		return
	}

	node := &CreateIndex{
		Table:        qualifiedName(ctx.Relation_expr().Qualified_name()),
		Unique:       ctx.Opt_unique() != nil && ctx.Opt_unique().UNIQUE() != nil,
		Concurrently: ctx.Opt_concurrently() != nil && ctx.Opt_concurrently().CONCURRENTLY() != nil,
	}
	if ctx.Name() != nil {
		node.Name = NormalizePostgreSQLName(ctx.Name())
	}
	if ctx.Index_params() != nil {
		for _, param := range ctx.Index_params().AllIndex_elem() {
			name := ""
			if param.Colid() != nil {
				name = NormalizePostgreSQLColid(param.Colid())
			}
			node.Columns = append(node.Columns, name)
		}
	}
	c.nodes = append(c.nodes, node)
}

func (c *converter) EnterDropstmt(ctx *parser.DropstmtContext) {
	if !isTopLevel(ctx.GetParent()) {
		return
	}

	var names []QualifiedName
	if ctx.Any_name_list() != nil {
		for _, anyName := range ctx.Any_name_list().AllAny_name() {
			names = append(names, qualifiedNameFromParts(NormalizePostgreSQLAnyName(anyName)))
		}
	}

	// DROP INDEX CONCURRENTLY has its own alternative in the grammar.
	if ctx.INDEX() != nil {
		c.nodes = append(c.nodes, &DropIndex{Names: names, Concurrently: ctx.CONCURRENTLY() != nil})
		return
	}

	objType := ctx.Object_type_any_name()
	if objType == nil {
		return
	}

	cascade := ctx.Opt_drop_behavior() != nil && ctx.Opt_drop_behavior().CASCADE() != nil
	switch {
	case objType.INDEX() != nil:
		c.nodes = append(c.nodes, &DropIndex{Names: names})
	case objType.MATERIALIZED() != nil:
		c.nodes = append(c.nodes, &DropRelation{Kind: ObjectMaterializedView, Names: names, Cascade: cascade})
	case objType.VIEW() != nil:
		c.nodes = append(c.nodes, &DropRelation{Kind: ObjectView, Names: names, Cascade: cascade})
	case objType.FOREIGN() != nil:
		c.nodes = append(c.nodes, &DropRelation{Kind: ObjectForeignTable, Names: names, Cascade: cascade})
	case objType.TABLE() != nil:
		c.nodes = append(c.nodes, &DropRelation{Kind: ObjectTable, Names: names, Cascade: cascade})
	}
}

func (c *converter) columnDef(colDef parser.IColumnDefContext) ColumnDef {
	def := ColumnDef{Name: NormalizePostgreSQLColid(colDef.Colid())}
	if colDef.Typename() != nil {
		def.Type = typeName(colDef.Typename())
	}
	if colDef.Colquallist() == nil {
		return def
	}

	for _, constraint := range colDef.Colquallist().AllColconstraint() {
		elem := constraint.Colconstraintelem()
		if elem == nil {
			continue
		}
		switch {
		case elem.NOT() != nil && elem.NULL_P() != nil:
			def.NotNull = true
		case elem.NULL_P() != nil:
			def.NotNull = false
		case elem.PRIMARY() != nil && elem.KEY() != nil:
			def.PrimaryKey = true
		case elem.UNIQUE() != nil:
			def.Unique = true
		case elem.DEFAULT() != nil && elem.B_expr() != nil:
			expr := c.tokens.GetTextFromRuleContext(elem.B_expr())
			def.Default = &expr
		case elem.GENERATED() != nil && elem.IDENTITY_P() != nil:
			def.Identity = true
		case elem.GENERATED() != nil && elem.STORED() != nil:
			def.Generated = true
		}
	}
	return def
}

// columnNames turns an optional column name list into untyped,
// nullable column definitions.
func columnNames(ctx parser.IOpt_column_listContext) []ColumnDef {
	if ctx == nil || ctx.Columnlist() == nil {
		return nil
	}
	return columnList(ctx.Columnlist())
}

func columnList(ctx parser.IColumnlistContext) []ColumnDef {
	var defs []ColumnDef
	for _, col := range ctx.AllColumnElem() {
		if col.Colid() != nil {
			defs = append(defs, ColumnDef{Name: NormalizePostgreSQLColid(col.Colid())})
		}
	}
	return defs
}

func (c *converter) text(ctx antlr.ParserRuleContext) string {
	return strings.TrimSpace(c.tokens.GetTextFromRuleContext(ctx))
}

func tableConstraint(ctx parser.ITableconstraintContext) Constraint {
	var constraint Constraint
	if ctx.Name() != nil {
		constraint.Name = NormalizePostgreSQLName(ctx.Name())
	}

	elem := ctx.Constraintelem()
	if elem == nil {
		return constraint
	}
	switch {
	case elem.PRIMARY() != nil && elem.KEY() != nil:
		constraint.Kind = ConstraintPrimaryKey
	case elem.UNIQUE() != nil:
		constraint.Kind = ConstraintUnique
	case elem.FOREIGN() != nil:
		constraint.Kind = ConstraintForeignKey
	case elem.CHECK() != nil:
		constraint.Kind = ConstraintCheck
	}

	if elem.Columnlist() != nil {
		for _, col := range elem.Columnlist().AllColumnElem() {
			if col.Colid() != nil {
				constraint.Columns = append(constraint.Columns, NormalizePostgreSQLColid(col.Colid()))
			}
		}
	}
	if elem.Existingindex() != nil && elem.Existingindex().Name() != nil {
		constraint.UsingIndex = NormalizePostgreSQLName(elem.Existingindex().Name())
	}
	return constraint
}

func qualifiedName(ctx parser.IQualified_nameContext) QualifiedName {
	return qualifiedNameFromParts(NormalizePostgreSQLQualifiedName(ctx))
}

// qualifiedNameFromParts keeps the last two parts of a dotted name.
// A database qualifier, if present, is ignored.
func qualifiedNameFromParts(parts []string) QualifiedName {
	switch len(parts) {
	case 0:
		return QualifiedName{}
	case 1:
		return QualifiedName{Name: parts[0]}
	default:
		return QualifiedName{Schema: parts[len(parts)-2], Name: parts[len(parts)-1]}
	}
}

func typeName(ctx parser.ITypenameContext) string {
	return strings.ToLower(ctx.GetText())
}
