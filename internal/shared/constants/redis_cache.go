package constants

import (
	"time"
)

// Redis key layout for the stall booking service
// Pattern: stallbook:{module}:{kind}:{identifier}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_STATIC_LONG      = 24 * time.Hour  // stall catalog rarely changes
	TTL_SEMI_STATIC      = 1 * time.Hour   // stall lists by zone
	TTL_STATE_SAFETY_PAD = 1 * time.Minute // extra life on state keys so lazy expiry sees them
)

const (
	CACHE_PREFIX = "stallbook"
)

// ================== STALLS MODULE ==================

const (
	CACHE_KEY_STALL_BY_CODE = CACHE_PREFIX + ":stalls:detail:code:" // + stall code
	CACHE_KEY_STALL_BY_ID   = CACHE_PREFIX + ":stalls:detail:uuid:" // + stall id
	CACHE_KEY_STALLS_ZONE   = CACHE_PREFIX + ":stalls:list:zone:"   // + zone or "all"

	TTL_STALL_DETAIL = TTL_STATIC_LONG
	TTL_STALL_LIST   = TTL_SEMI_STATIC

	PATTERN_INVALIDATE_STALLS = CACHE_PREFIX + ":stalls:*"
)

// ================== RESERVATIONS MODULE ==================

const (
	STATE_KEY_HOLD         = CACHE_PREFIX + ":holds:key:"     // + stall key
	STATE_KEY_SESSION_HOLD = CACHE_PREFIX + ":holds:session:" // + session id
	STATE_KEY_HOLD_INDEX   = CACHE_PREFIX + ":holds:index"    // set of stall keys with holds
)

// ================== QUEUE MODULE ==================

const (
	STATE_KEY_QUEUE        = CACHE_PREFIX + ":queue:key:"    // + stall key
	STATE_KEY_QUEUE_TICKET = CACHE_PREFIX + ":queue:ticket:" // + ticket id
	STATE_KEY_QUEUE_ACTIVE = CACHE_PREFIX + ":queue:active"  // set of stall keys with queue state
)

// ================== RATE LIMIT ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:"
)

func BuildStallByCodeKey(code string) string {
	return CACHE_KEY_STALL_BY_CODE + code
}

func BuildStallByIDKey(id string) string {
	return CACHE_KEY_STALL_BY_ID + id
}

func BuildStallZoneListKey(zone string) string {
	if zone == "" {
		zone = "all"
	}
	return CACHE_KEY_STALLS_ZONE + zone
}

func BuildHoldKey(stallKey string) string {
	return STATE_KEY_HOLD + stallKey
}

func BuildSessionHoldKey(sessionID string) string {
	return STATE_KEY_SESSION_HOLD + sessionID
}

func BuildQueueKey(stallKey string) string {
	return STATE_KEY_QUEUE + stallKey
}

func BuildQueueTicketKey(ticketID string) string {
	return STATE_KEY_QUEUE_TICKET + ticketID
}
