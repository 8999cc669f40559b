package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client against external contact sources.
var UserAgent = "Birthday-Sync/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Birthday Sync"
	AppID          = "com.github.tartampluch.birthday-sync"
	KeyringService = "com.github.tartampluch.birthday-sync"
	BinaryName     = "birthday-sync"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------.
	DirPermUserRWX fs.FileMode = 0700

	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagConfig       = "config"
	FlagDebug        = "debug"
	FlagCompany      = "company"
	FlagCursor       = "cursor"
	FlagBatch        = "batch"
	FlagDescConfig   = "Path to the YAML settings file"
	FlagDescDebug    = "Enable debug logging"
	FlagDescCompany  = "Company (tenant) owning the integration"
	FlagDescCursor   = "Resume after this contact id"
	FlagDescBatch    = "Contacts per batch"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
	FlagCycle        = "cycle"
	FlagDescCycle    = "Run today's cycle in the background once listening"
)

// Subcommands.
const (
	CmdRun          = "run"
	CmdRunShort     = "Run today's birthday dispatch and integration syncs"
	CmdSync         = "sync <integration>"
	CmdSyncShort    = "Reconcile one integration now"
	CmdProbe        = "probe <integration> <phone>"
	CmdProbeShort   = "Import a single contact from an integration"
	CmdPing         = "ping <integration>"
	CmdPingShort    = "Check an integration's credentials"
	CmdFixNames     = "fix-names"
	CmdFixShort     = "Repair invalid contact names"
	CmdServe        = "serve"
	CmdServeShort   = "Serve tenant birthday calendars and cycle status"
	CmdVersion      = "version"
	CmdVersionShort = "Print version information"
	CmdRootShort    = "Contact reconciliation and birthday notification engine"
)

// -----------------------------------------------------------------------------
// Integration Types & External API
// -----------------------------------------------------------------------------

const (
	IntegrationTypeGestaoClick = "gestaoclick"
	IntegrationTypeVCard       = "vcard"

	DefaultGestaoClickBaseURL = "https://api.beteltecnologia.com/api"
	GestaoClickPathClients    = "/clientes"
	GestaoClickParamPage      = "pagina"
	GestaoClickParamPhone     = "telefone"
	HeaderAccessToken         = "access-token"
	HeaderSecretAccessToken   = "secret-access-token"

	// GestaoClick boolean flags arrive as strings.
	GestaoClickActiveTrue = "1"

	// Pages handed out by the vCard source. The export itself is a single document.
	VCardPageSize = 100
	VCardTypeCell = "cell"
)

// IntegrationTypes lists the types swept by the daily cycle.
var IntegrationTypes = []string{IntegrationTypeGestaoClick, IntegrationTypeVCard}

// -----------------------------------------------------------------------------
// Phone, Name & Date Normalization
// -----------------------------------------------------------------------------

const (
	CountryCode = "55"

	PhoneMinLength = 12
	PhoneMaxLength = 13

	// Number of digits forming a national number (area + subscriber).
	NationalMinLength = 10
	NationalMaxLength = 11

	// Leading zero lengths. A single trunk zero precedes 11 or 12 digit inputs,
	// trunk zero plus a two digit carrier code precedes 13 or 14 digit inputs.
	TrunkPrefixLen   = 1
	CarrierPrefixLen = 3

	DateFormatISO      = "2006-01-02"
	DateFormatDayKey   = "20060102"
	UnsetBirthDate     = "0000-00-00"
	MinBirthYear       = 1900
	NeutralHourOfDay   = 12
	PlaceholderNameLID = "@lid"

	// Names made of this many digits (no spaces) are phone numbers stored as names.
	NumericNameMinDigits = 16

	FallbackContactName = "Contact"
)

// NameConnectors are surname particles kept lowercase when fixing ALL-CAPS names.
var NameConnectors = []string{"da", "das", "de", "do", "dos", "e"}

// -----------------------------------------------------------------------------
// Scheduling, Delays & Limits
// -----------------------------------------------------------------------------

const (
	DefaultTimezone = "America/Sao_Paulo"
	DefaultLanguage = "en"

	PageDelay        = 350 * time.Millisecond
	SendDelayMin     = 60 * time.Second
	SendDelayMax     = 360 * time.Second
	DedupTTL         = 48 * time.Hour
	ProbeSearchPages = 5

	RetryBaseDelay = 1 * time.Second
	RetryMaxDelay  = 30 * time.Second

	DefaultListLimit       = 500
	DefaultNameFixBatch    = 200
	AnnouncementCleanLimit = 1000

	// System tenant authoring birthday announcements.
	SystemCompanyID int64 = 1

	DedupKeyPrefix = "birthday:sent"
)

// -----------------------------------------------------------------------------
// Channels, Tickets & Realtime Events
// -----------------------------------------------------------------------------

const (
	ChannelStatusConnected = "CONNECTED"

	DirectionOutbound = "outbound"

	// MessageBodyPrefix is a left-to-right mark prepended to delivered bodies.
	MessageBodyPrefix = "\u200e "

	PlaceholderName      = "{name}"
	PlaceholderAge       = "{age}"
	PlaceholderNameAlias = "{nome}"
	PlaceholderAgeAlias  = "{idade}"

	EventCompanyAnnouncement = "company-announcement"
	EventBirthdays           = "birthday-events"
	EventActionCreate        = "create"

	ExchangeRealtime   = "realtime"
	ExchangeOutbound   = "outbound"
	ExchangeKindTopic  = "topic"
	QueueOutbound      = "message.outbound"
	RoutingKeyOutbound = "message.outbound"
	RoutingKeyTenantFm = "tenant.%d.%s"
	MimeJSON           = "application/json"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	PublishTimeout      = 5 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	MaxHTTPResponseSize = 64 * 1024 * 1024
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	DefaultListenAddr   = "127.0.0.1:18080"
	DefaultDBPath       = "data/birthday-sync.db"
)

// -----------------------------------------------------------------------------
// HTTP Headers, Routes & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType  = "Content-Type"
	HeaderCacheControl = "Cache-Control"
	HeaderETag         = "ETag"
	HeaderIfNoneMatch  = "If-None-Match"
	HeaderXContentType = "X-Content-Type-Options"
	HeaderUserAgent    = "User-Agent"
	HeaderAccept       = "Accept"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	FormatETag          = `"%s"`

	RouteHealth   = "/healthz"
	RouteStatus   = "/status"
	RouteCalendar = "/tenants/{companyID}/birthdays.ics"
	URLParamComp  = "companyID"
)

// Conditional requests and readiness.
const (
	HeaderLastModified    = "Last-Modified"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderRetryAfter      = "Retry-After"
	RetryAfterSeconds     = "30"

	HTTPMsgBadCompany  = "invalid company id"
	HTTPMsgCalendarErr = "calendar generation failed"
	HTTPMsgNoCycle     = "no cycle has completed yet"
	HTTPStatusOK       = "ok"
	HealthKeyStatus    = "status"
)

// -----------------------------------------------------------------------------
// iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Birthday Sync//Calendar//EN"
	ICalCalName = "Birthdays"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "birthday-sync"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"
	PropAction     = "ACTION"
	PropDescr      = "DESCRIPTION"
	PropTrigger    = "TRIGGER"

	ICalComponentAlarm = "VALARM"
	ICalActionDisplay  = "DISPLAY"

	DefaultICalRefresh = 6 * time.Hour
	FormatUID          = "%d-%d-%d@%s"
	FallbackSummary    = "Birthday: %s"
	FallbackSummaryAge = "Birthday: %s (%d)"

	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Translation Keys (go-i18n)
// -----------------------------------------------------------------------------

const (
	TKeyProbeWrongType     = "probe_wrong_type"
	TKeyProbeTokensMissing = "probe_tokens_missing"
	TKeyProbeInvalidNumber = "probe_invalid_number"
	TKeyProbeNotFound      = "probe_not_found"
	TKeyProbeInvalidPhone  = "probe_invalid_phone"
	TKeyProbeNoBirthDate   = "probe_no_birth_date"
	TKeyProbeCreated       = "probe_created"
	TKeyProbeNoUpdate      = "probe_no_update"
	TKeyProbeUpdated       = "probe_updated"
	TKeyProbeFailed        = "probe_failed"

	TKeyPingOK           = "ping_ok"
	TKeyPingUnauthorized = "ping_unauthorized"
	TKeyPingRateLimited  = "ping_rate_limited"
	TKeyPingFailed       = "ping_failed"

	TKeySyncOK        = "sync_ok"
	TKeySyncWrongType = "sync_wrong_type"
	TKeySyncFailed    = "sync_failed"

	TKeyBirthdayMessage     = "birthday_message_default"
	TKeyAnnouncementSubject = "announcement_subject"
	TKeyAnnouncementBody    = "announcement_body"
	TKeyAnnouncementBodyAge = "announcement_body_age"
	TKeyEvtSummary          = "event_summary"
	TKeyEvtSummaryAge       = "event_summary_age"
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrBuildRequest      = "failed to create request"
	ErrNetwork           = "network error during fetch"
	ErrStatus            = "server returned unexpected status"
	ErrDecodeResponse    = "failed to decode response"
	ErrVCardParse        = "failed to parse vCard stream"
	ErrICalEncode        = "failed to encode iCalendar data"
	ErrTokensMissing     = "integration tokens missing"
	ErrCredentials       = "invalid integration credentials"
	ErrIntegrationType   = "unsupported integration type"
	ErrSettingsRead      = "failed to read settings file"
	ErrSettingsParse     = "failed to parse settings file"
	ErrSettingsInvalid   = "invalid settings"
	ErrTimezone          = "unknown timezone"
	ErrKeyring           = "failed to resolve secret from keyring"
	ErrDBOpen            = "failed to open database"
	ErrDBMigrate         = "failed to migrate database"
	ErrDBQuery           = "database query failed"
	ErrDuplicateContact  = "contact already exists for number"
	ErrAMQPConnect       = "failed to connect to message broker"
	ErrAMQPPublish       = "failed to publish message"
	ErrAMQPTopology      = "failed to declare broker topology"
	ErrAMQPMissing       = "message broker URL not configured"
	ErrAMQPChannel       = "failed to open broker channel"
	ErrAMQPClosed        = "message broker client closed"
	ErrMarshal           = "failed to marshal payload"
	ErrEmptyBody         = "message body is empty"
	ErrChannelMissing    = "no connected channel for tenant"
	ErrChannelDown       = "channel is not connected"
	ErrContactMissing    = "contact not found"
	ErrPanic             = "recovered from panic"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrAppFailed         = "application failed unexpectedly"
	ErrInvalidArgument   = "invalid argument"
	ErrUnknownDedup      = "unknown dedup backend"
	ErrIntegrationLedger = "failed to persist integration ledger"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting       = "Starting application"
	MsgAppStop           = "Application stopped gracefully"
	MsgCycleStarted      = "Daily cycle started"
	MsgCycleFinished     = "Daily cycle finished"
	MsgTenantFailed      = "Tenant birthday run failed"
	MsgTenantsFailed     = "Failed to list active tenants"
	MsgListIntegrations  = "Failed to list integrations"
	MsgSyncStarted       = "Integration sync started"
	MsgSyncFinished      = "Integration sync finished"
	MsgSyncFailed        = "Integration sync failed"
	MsgSyncCancelled     = "Integration sync cancelled"
	MsgPageFetched       = "Page fetched"
	MsgPageRetry         = "Retrying page fetch"
	MsgRecordSkipped     = "Skipping record without usable phone"
	MsgContactCreated    = "Contact created from external record"
	MsgContactUpdated    = "Contact updated from external record"
	MsgLedgerFailed      = "Failed to persist integration ledger"
	MsgBirthdaysFound    = "Birthdays found for tenant"
	MsgBdayToday         = "Birthday found today"
	MsgDedupCheckFailed  = "Dedup lookup failed"
	MsgSendWaiting       = "Waiting before birthday send"
	MsgSendDuplicate     = "Birthday message already sent today"
	MsgSendSucceeded     = "Birthday message sent"
	MsgSendFailed        = "Birthday message failed"
	MsgHistoryFailed     = "Failed to record sent message in history"
	MsgChannelFallback   = "Configured channel missing or disconnected, using default"
	MsgAnnouncement      = "Birthday announcement created"
	MsgAnnouncementFail  = "Birthday announcement failed"
	MsgAnnouncementsOff  = "Announcements disabled for tenant"
	MsgRealtimeFailed    = "Realtime event publish failed"
	MsgAnnouncementsSwep = "Expired announcements removed"
	MsgCleanupFailed     = "Announcement cleanup failed"
	MsgDispatchCancelled = "Dispatch cancelled"
	MsgDispatchFinished  = "Birthday dispatch finished"
	MsgNameFixFinished   = "Contact name repair finished"
	MsgNameFixed         = "Contact name repaired"
	MsgCalendarBuilt     = "Birthday calendar generated"
	MsgServerListen      = "HTTP server listening"
	MsgServerStop        = "Shutting down HTTP server..."
	MsgRequestDone       = "Request completed"
	MsgCalendarFailed    = "Calendar generation failed"
	MsgCacheUpdated      = "Calendar cache updated"
	MsgDedupPurged       = "Expired dedup keys purged"
	MsgDBOpened          = "Database ready"
	MsgFetchStart        = "Initiating download"
	MsgBadStatus         = "Server returned error status"
	MsgSkippedCard       = "Skipping malformed vCard"
	MsgAMQPConnected     = "AMQP client connected successfully"
	MsgAMQPClosed        = "AMQP connection closed"
	MsgAMQPReconnect     = "AMQP reconnect attempt failed"
	MsgAMQPReconnected   = "AMQP client reconnected"
	MsgPublished         = "Message published successfully"
	MsgTopologyReady     = "AMQP topology declared"
	MsgLocaleLoaded      = "Locale loaded successfully"
	MsgTransMissing      = "Missing translation key"
	MsgCloseFailed       = "Failed to release resources"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent   = "component"
	LogKeyError       = "error"
	LogKeyURL         = "url"
	LogKeyStatus      = "status_code"
	LogKeyCompany     = "company_id"
	LogKeyIntegration = "integration_id"
	LogKeyType        = "integration_type"
	LogKeyRun         = "run_id"
	LogKeyPage        = "page"
	LogKeyTotalPages  = "total_pages"
	LogKeyRecords     = "records"
	LogKeyExternalID  = "external_id"
	LogKeyContact     = "contact_id"
	LogKeyUser        = "user_id"
	LogKeyChannel     = "channel_id"
	LogKeyTicket      = "ticket_id"
	LogKeyDelivery    = "delivery_id"
	LogKeyAttempt     = "attempt"
	LogKeyDelay       = "delay_ms"
	LogKeyKind        = "kind"
	LogKeyProcessed   = "processed"
	LogKeyUpdated     = "updated"
	LogKeyCreated     = "created"
	LogKeySkipped     = "skipped"
	LogKeyUsers       = "users"
	LogKeyContacts    = "contacts"
	LogKeyDuplicates  = "duplicates"
	LogKeyFailed      = "failed"
	LogKeyCount       = "count"
	LogKeyCursor      = "cursor"
	LogKeyEvent       = "event"
	LogKeyExchange    = "exchange"
	LogKeyQueue       = "queue"
	LogKeyRoutingKey  = "routing_key"
	LogKeyName        = "name"
	LogKeyDOB         = "date_of_birth"
	LogKeyDuration    = "duration_ms"
	LogKeyFile        = "file"
	LogKeyLang        = "lang"
	LogKeyKey         = "key"
	LogKeyAddr        = "addr"
	LogKeyTenants     = "tenants"
	LogKeySyncs       = "integrations"
	LogKeyDate        = "date"
	LogKeyStats       = "stats"
	LogKeyToday       = "today"
	LogKeyMethod      = "method"
	LogKeyPath        = "path"
	LogKeyBytes       = "bytes"
	LogKeyETag        = "etag"
	LogKeyRequestID   = "request_id"

	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain       = "main"
	CompEngine     = "engine"
	CompReconciler = "reconciler"
	CompSource     = "source"
	CompFetcher    = "fetcher"
	CompFinder     = "birthday_finder"
	CompDispatcher = "dispatcher"
	CompNameFix    = "namefix"
	CompStore      = "store"
	CompNotify     = "notify"
	CompServer     = "server"
	CompCalendar   = "calendar"
	CompI18n       = "i18n"
)
