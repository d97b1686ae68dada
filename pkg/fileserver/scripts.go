package fileserver

import "fmt"

// generateScript renders the platform-specific upload script for
// session id. requireAPIKey only adds a comment line to the generated
// sh/ps1 script saying an API key is needed; enforcement happens server-side in
// requireAPIKeyIfNeeded regardless of what a client sends.
func generateScript(platform, baseURL, id string, requireAPIKey bool) string {
	switch platform {
	case "ps1":
		return generatePs1Script(baseURL, id, requireAPIKey)
	case "bat":
		return generateBatScript(baseURL, id)
	default:
		return generateShScript(baseURL, id, requireAPIKey)
	}
}

func generateShScript(baseURL, id string, requireAPIKey bool) string {
	apiKeyNote := ""
	if requireAPIKey {
		apiKeyNote = "# This upload requires --api-key <token>.\n"
	}
	return fmt.Sprintf(`#!/usr/bin/env bash
set -euo pipefail

BASE_URL=%q
ID=%q
%sFILE=""
SAVE_AS=""
QUIET=0
CHUNK_MB=16
API_KEY=""

while [[ $# -gt 0 ]]; do
  case "$1" in
    --file) FILE="$2"; shift 2 ;;
    --save-as) SAVE_AS="$2"; shift 2 ;;
    --quiet) QUIET=1; shift ;;
    --chunk-size) CHUNK_MB="$2"; shift 2 ;;
    --api-key) API_KEY="$2"; shift 2 ;;
    *) echo "unknown flag: $1" >&2; exit 1 ;;
  esac
done

if [[ -z "$FILE" ]]; then echo "--file is required" >&2; exit 1; fi
if (( CHUNK_MB < 5 || CHUNK_MB > 40 )); then
  echo "--chunk-size must be between 5 and 40 (MiB)" >&2; exit 1
fi
CHUNK_SIZE=$(( CHUNK_MB * 1024 * 1024 ))

AUTH_HEADER=()
if [[ -n "$API_KEY" ]]; then AUTH_HEADER=(-H "X-Api-Key: $API_KEY"); fi

FILENAME="${SAVE_AS:-$(basename "$FILE")}"
log() { [[ "$QUIET" == "1" ]] || echo "$@" >&2; }

log "initiating upload for $FILENAME"
curl -fsS -X POST "$BASE_URL/api/filereq/$ID/upload" "${AUTH_HEADER[@]}" -H "X-Filename: $FILENAME" >/dev/null

SIZE=$(stat -c%%s "$FILE" 2>/dev/null || stat -f%%z "$FILE")
CHUNKS=$(( (SIZE + CHUNK_SIZE - 1) / CHUNK_SIZE ))
if (( CHUNKS == 0 )); then CHUNKS=1; fi

for (( i=0; i<CHUNKS; i++ )); do
  log "uploading chunk $((i+1))/$CHUNKS"
  dd if="$FILE" bs="$CHUNK_SIZE" skip="$i" count=1 2>/dev/null | \
    curl -fsS -X PUT "$BASE_URL/api/filereq/$ID/upload" "${AUTH_HEADER[@]}" --data-binary @- >/dev/null
done

log "finalizing upload"
curl -fsS -X POST "$BASE_URL/api/filereq/$ID/upload/complete" "${AUTH_HEADER[@]}" >/dev/null
log "done"
`, baseURL, id, apiKeyNote)
}

func generatePs1Script(baseURL, id string, requireAPIKey bool) string {
	apiKeyNote := ""
	if requireAPIKey {
		apiKeyNote = "# This upload requires -ApiKey <token>.\n"
	}
	return fmt.Sprintf(`param(
    [Parameter(Mandatory=$true)][string]$File,
    [string]$SaveAs,
    [switch]$Quiet,
    [int]$ChunkSize = 16,
    [string]$ApiKey
)

$ErrorActionPreference = "Stop"
$BaseUrl = %q
$Id = %q
%s
if ($ChunkSize -lt 5 -or $ChunkSize -gt 40) {
    throw "-ChunkSize must be between 5 and 40 (MiB)"
}
$ChunkBytes = $ChunkSize * 1MB

$Filename = if ($SaveAs) { $SaveAs } else { Split-Path $File -Leaf }
function Log($msg) { if (-not $Quiet) { Write-Host $msg } }

$initHeaders = @{ "X-Filename" = $Filename }
if ($ApiKey) { $initHeaders["X-Api-Key"] = $ApiKey }
Log "initiating upload for $Filename"
Invoke-RestMethod -Method Post -Uri "$BaseUrl/api/filereq/$Id/upload" -Headers $initHeaders | Out-Null

$chunkHeaders = @{}
if ($ApiKey) { $chunkHeaders["X-Api-Key"] = $ApiKey }

$stream = [System.IO.File]::OpenRead($File)
try {
    $total = $stream.Length
    $sent = 0
    $buffer = New-Object byte[] $ChunkBytes
    while (($read = $stream.Read($buffer, 0, $buffer.Length)) -gt 0) {
        $sent += $read
        Log "uploading $sent/$total bytes"
        $chunk = if ($read -eq $buffer.Length) { $buffer } else { $buffer[0..($read - 1)] }
        Invoke-RestMethod -Method Put -Uri "$BaseUrl/api/filereq/$Id/upload" -Headers $chunkHeaders -Body $chunk | Out-Null
    }
} finally {
    $stream.Close()
}

Log "finalizing upload"
Invoke-RestMethod -Method Post -Uri "$BaseUrl/api/filereq/$Id/upload/complete" -Headers $chunkHeaders | Out-Null
Log "done"
`, baseURL, id, apiKeyNote)
}

// generateBatScript is a thin cmd.exe shim: native batch has no
// workable byte-range file reading, so it fetches and runs this
// session's own .ps1 script rather than reimplementing the chunking
// logic in batch syntax.
func generateBatScript(baseURL, id string) string {
	return fmt.Sprintf(`@echo off
setlocal
set BASEURL=%s
set ID=%s
set SCRIPT=%%TEMP%%\filereq-%%ID%%.ps1
powershell -NoProfile -Command "Invoke-WebRequest -Uri '%%BASEURL%%/api/filereq/%%ID%%/ps1' -OutFile '%%SCRIPT%%'"
powershell -NoProfile -ExecutionPolicy Bypass -File "%%SCRIPT%%" %%*
endlocal
`, baseURL, id)
}
