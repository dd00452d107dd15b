package token

import "strings"

// reservedKeywords are the T-SQL reserved words. They lex as Keyword and
// cannot appear as bare identifiers.
var reservedKeywords = toSet(`
ADD ALL ALTER AND ANY AS ASC AUTHORIZATION BACKUP BEGIN BETWEEN BREAK BROWSE
BULK BY CASCADE CASE CHECK CHECKPOINT CLOSE CLUSTERED COALESCE COLLATE COLUMN
COMMIT COMPUTE CONSTRAINT CONTAINS CONTAINSTABLE CONTINUE CONVERT CREATE CROSS
CURRENT CURRENT_DATE CURRENT_TIME CURRENT_TIMESTAMP CURRENT_USER CURSOR
DATABASE DBCC DEALLOCATE DECLARE DEFAULT DELETE DENY DESC DISK DISTINCT
DISTRIBUTED DOUBLE DROP DUMP ELSE END ERRLVL ESCAPE EXCEPT EXEC EXECUTE EXISTS
EXIT EXTERNAL FETCH FILE FILLFACTOR FOR FOREIGN FREETEXT FREETEXTTABLE FROM
FULL FUNCTION GOTO GRANT GROUP HAVING HOLDLOCK IDENTITY IDENTITY_INSERT
IDENTITYCOL IF IN INDEX INNER INSERT INTERSECT INTO IS JOIN KEY KILL LEFT LIKE
LINENO LOAD MERGE NATIONAL NOCHECK NONCLUSTERED NOT NULL NULLIF OF OFF OFFSETS
ON OPEN OPENDATASOURCE OPENQUERY OPENROWSET OPENXML OPTION OR ORDER OUTER OVER
PERCENT PIVOT PLAN PRECISION PRIMARY PRINT PROC PROCEDURE PUBLIC RAISERROR READ
READTEXT RECONFIGURE REFERENCES REPLICATION RESTORE RESTRICT RETURN REVERT
REVOKE RIGHT ROLLBACK ROWCOUNT ROWGUIDCOL RULE SAVE SCHEMA SECURITYAUDIT SELECT
SESSION_USER SET SETUSER SHUTDOWN SOME STATISTICS SYSTEM_USER TABLE TABLESAMPLE
TEXTSIZE THEN TO TOP TRAN TRANSACTION TRIGGER TRUNCATE TRY_CONVERT TSEQUAL UNION
UNIQUE UNPIVOT UPDATE UPDATETEXT USE USER VALUES VARYING VIEW WAITFOR WHEN WHERE
WHILE WITH WITHIN WRITETEXT
`)

// builtinFunctions are system functions whose names lex as identifiers and
// are re-cased with the builtin-function casing.
var builtinFunctions = toSet(`
ABS ACOS APP_NAME APPROX_COUNT_DISTINCT ASCII ASIN ATAN ATN2 AVG CAST CEILING
CHAR CHARINDEX CHECKSUM CHECKSUM_AGG CHOOSE CONCAT CONCAT_WS COS COT COUNT
COUNT_BIG CUME_DIST DATALENGTH DATEADD DATEDIFF DATEDIFF_BIG DATEFROMPARTS
DATENAME DATEPART DATETIME2FROMPARTS DATETIMEFROMPARTS DAY DB_ID DB_NAME
DEGREES DENSE_RANK DIFFERENCE EOMONTH ERROR_LINE ERROR_MESSAGE ERROR_NUMBER
ERROR_PROCEDURE ERROR_SEVERITY ERROR_STATE EXP FIRST_VALUE FLOOR FORMAT
FORMATMESSAGE GETDATE GETUTCDATE GREATEST GROUPING GROUPING_ID HASHBYTES
HOST_NAME IIF ISDATE ISJSON ISNULL ISNUMERIC JSON_MODIFY JSON_QUERY JSON_VALUE
LAG LAST_VALUE LEAD LEAST LEN LOG LOG10 LOWER LTRIM MAX MIN MONTH NCHAR NEWID
NEWSEQUENTIALID NTILE OBJECT_ID OBJECT_NAME PARSE PATINDEX PERCENT_RANK
PERCENTILE_CONT PERCENTILE_DISC PI POWER QUOTENAME RADIANS RAND RANK REPLACE
REPLICATE REVERSE ROUND ROW_NUMBER ROWCOUNT_BIG RTRIM SCHEMA_NAME
SCOPE_IDENTITY SIGN SIN SOUNDEX SPACE SQRT SQUARE STDEV STDEVP STR STRING_AGG
STRING_ESCAPE STRING_SPLIT STUFF SUBSTRING SUM SUSER_NAME SUSER_SNAME
SWITCHOFFSET SYSDATETIME SYSDATETIMEOFFSET SYSUTCDATETIME TAN TIMEFROMPARTS
TODATETIMEOFFSET TRANSLATE TRIM TRY_CAST TRY_PARSE TYPE_ID TYPE_NAME UNICODE
UPPER USER_ID USER_NAME VAR VARP YEAR
`)

// dataTypes are the system data type names.
var dataTypes = toSet(`
BIGINT BINARY BIT CHAR CURSOR DATE DATETIME DATETIME2 DATETIMEOFFSET DECIMAL
FLOAT GEOGRAPHY GEOMETRY HIERARCHYID IMAGE INT INTEGER MONEY NCHAR NTEXT NUMERIC
NVARCHAR REAL ROWVERSION SMALLDATETIME SMALLINT SMALLMONEY SQL_VARIANT SYSNAME
TABLE TEXT TIME TIMESTAMP TINYINT UNIQUEIDENTIFIER VARBINARY VARCHAR XML
`)

// statementKeywords introduce a top-level statement.
var statementKeywords = toSet(`
ALTER BACKUP BEGIN BREAK BULK CHECKPOINT CLOSE COMMIT CONTINUE CREATE DBCC
DEALLOCATE DECLARE DELETE DENY DROP DUMP EXEC EXECUTE FETCH GOTO GRANT IF
INSERT KILL LOAD MERGE OPEN PRINT RAISERROR READTEXT RECONFIGURE RESTORE RETURN
REVERT REVOKE ROLLBACK SAVE SELECT SET SETUSER SHUTDOWN TRUNCATE UPDATE
UPDATETEXT USE WAITFOR WHILE WITH WRITETEXT
`)

// standardForms maps abbreviated keywords to their long form.
var standardForms = map[string]string{
	"TRAN": "TRANSACTION",
	"EXEC": "EXECUTE",
	"PROC": "PROCEDURE",
}

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// IsReserved reports whether word is a T-SQL reserved keyword.
func IsReserved(word string) bool {
	_, ok := reservedKeywords[strings.ToUpper(word)]
	return ok
}

// IsBuiltinFunction reports whether name is a system function.
func IsBuiltinFunction(name string) bool {
	_, ok := builtinFunctions[strings.ToUpper(name)]
	return ok
}

// IsDataType reports whether name is a system data type.
func IsDataType(name string) bool {
	_, ok := dataTypes[strings.ToUpper(name)]
	return ok
}

// IsStatementKeyword reports whether word can begin a statement.
func IsStatementKeyword(word string) bool {
	_, ok := statementKeywords[strings.ToUpper(word)]
	return ok
}

// StandardForm returns the long form of an abbreviated keyword such as
// TRAN or EXEC, and false when the keyword has no alternative spelling.
func StandardForm(keyword string) (string, bool) {
	long, ok := standardForms[strings.ToUpper(keyword)]
	return long, ok
}
