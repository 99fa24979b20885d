package redis

const (
	// recordEntryScript atomically opens a session for a plate. Returns -1
	// when the plate already has an open session, otherwise the new id.
	recordEntryScript = `
local open_key = KEYS[1]     -- parkgate:open:{plate}
local seq_key = KEYS[2]      -- parkgate:session:seq
local by_entry = KEYS[3]     -- parkgate:sessions:by_entry
local open_set = KEYS[4]     -- parkgate:sessions:open
local plates_set = KEYS[5]   -- parkgate:sessions:plates
local stats_key = KEYS[6]    -- parkgate:sessions:stats

local plate = ARGV[1]
local entry_time = ARGV[2]
local entry_unix = ARGV[3]
local confidence = ARGV[4]
local image_path = ARGV[5]
local session_prefix = ARGV[6]

if redis.call('EXISTS', open_key) == 1 then
  return -1
end

local id = redis.call('INCR', seq_key)
local session_key = session_prefix .. id

redis.call('HSET', session_key,
  'id', id,
  'plate', plate,
  'entry_time', entry_time,
  'entry_unix', entry_unix,
  'duration_minutes', 0,
  'fee', '0',
  'status', 'IN',
  'confidence', confidence,
  'image_path', image_path
)

-- Indexes
redis.call('SET', open_key, id)
redis.call('ZADD', by_entry, entry_unix, id)
redis.call('SADD', open_set, id)
redis.call('SADD', plates_set, plate)

-- Running confidence aggregate for statistics
if confidence ~= '' then
  redis.call('HINCRBYFLOAT', stats_key, 'conf_sum', confidence)
  redis.call('HINCRBY', stats_key, 'conf_count', 1)
end

return id
`

	// recordExitScript atomically closes the open session for a plate,
	// computing duration and the two tier fee inside the script. Returns
	// false when the plate has no open session.
	recordExitScript = `
local open_key = KEYS[1]     -- parkgate:open:{plate}
local open_set = KEYS[2]     -- parkgate:sessions:open

local exit_time = ARGV[1]
local exit_unix = tonumber(ARGV[2])
local tier1 = ARGV[3]
local tier2 = ARGV[4]
local boundary = tonumber(ARGV[5])
local session_prefix = ARGV[6]

local id = redis.call('GET', open_key)
if not id then
  return false
end

local session_key = session_prefix .. id
local entry_unix = tonumber(redis.call('HGET', session_key, 'entry_unix'))

local minutes = 0
if exit_unix > entry_unix then
  minutes = math.floor((exit_unix - entry_unix) / 60000000000)
end

local fee = tier2
if minutes <= boundary then
  fee = tier1
end

redis.call('HSET', session_key,
  'exit_time', exit_time,
  'duration_minutes', minutes,
  'fee', fee,
  'status', 'OUT'
)

redis.call('DEL', open_key)
redis.call('SREM', open_set, id)

local entry_time = redis.call('HGET', session_key, 'entry_time')
return {id, entry_time, tostring(minutes), fee}
`
)
