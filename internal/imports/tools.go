package imports

import (
	_ "github.com/sammcj/mcp-sheets/internal/tools/sheets"
	_ "github.com/sammcj/mcp-sheets/internal/tools/utilities/toolhelp"
)
