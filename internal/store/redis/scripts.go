package redis

import "github.com/redis/go-redis/v9"

// The row policy lives in these scripts so it runs inside Redis, next to the data,
// and not in the client. Each script first resolves KEYS[1] (the caller's session)
// to a user id. Row keys are derived inside the scripts, so they require a
// non-cluster deployment.

const resolveCaller = `
local uid = redis.call('HGET', KEYS[1], 'user_id')
if not uid then
  return redis.error_reply('UNAUTHORIZED session is missing or expired')
end
`

// selectScript: KEYS = session, owner set. ARGV = owner, row prefix, order.
// Foreign owners see an empty set rather than an error.
var selectScript = redis.NewScript(resolveCaller + `
if uid ~= ARGV[1] then
  return {}
end
local ids
if ARGV[3] == 'desc' then
  ids = redis.call('ZREVRANGE', KEYS[2], 0, -1)
else
  ids = redis.call('ZRANGE', KEYS[2], 0, -1)
end
local rows = {}
for _, id in ipairs(ids) do
  local row = redis.call('HMGET', ARGV[2] .. id, 'id', 'title', 'url', 'user_id', 'created_at')
  if row[1] then
    rows[#rows + 1] = row
  end
end
return rows
`)

// insertScript: KEYS = session, id sequence.
// ARGV = title, url, owner, row prefix, owner set prefix, channel prefix, table.
var insertScript = redis.NewScript(resolveCaller + `
if uid ~= ARGV[3] then
  return redis.error_reply('DENIED row owner must be the caller')
end
local id = redis.call('INCR', KEYS[2])
local ts = tonumber(redis.call('TIME')[1])
redis.call('HSET', ARGV[4] .. id, 'id', id, 'title', ARGV[1], 'url', ARGV[2], 'user_id', uid, 'created_at', ts)
redis.call('ZADD', ARGV[5] .. uid, id, id)
redis.call('PUBLISH', ARGV[6] .. uid, cjson.encode({type = 'INSERT', table = ARGV[7], id = id, user_id = uid, at = ts}))
return id
`)

// updateScript: KEYS = session.
// ARGV = id, title, url, row prefix, channel prefix, table. Returns affected rows.
var updateScript = redis.NewScript(resolveCaller + `
local key = ARGV[4] .. ARGV[1]
local owner = redis.call('HGET', key, 'user_id')
if (not owner) or owner ~= uid then
  return 0
end
redis.call('HSET', key, 'title', ARGV[2], 'url', ARGV[3])
local ts = tonumber(redis.call('TIME')[1])
redis.call('PUBLISH', ARGV[5] .. uid, cjson.encode({type = 'UPDATE', table = ARGV[6], id = tonumber(ARGV[1]), user_id = uid, at = ts}))
return 1
`)

// deleteScript: KEYS = session.
// ARGV = id, row prefix, owner set prefix, channel prefix, table. Returns affected rows.
var deleteScript = redis.NewScript(resolveCaller + `
local key = ARGV[2] .. ARGV[1]
local owner = redis.call('HGET', key, 'user_id')
if (not owner) or owner ~= uid then
  return 0
end
redis.call('DEL', key)
redis.call('ZREM', ARGV[3] .. uid, ARGV[1])
local ts = tonumber(redis.call('TIME')[1])
redis.call('PUBLISH', ARGV[4] .. uid, cjson.encode({type = 'DELETE', table = ARGV[5], id = tonumber(ARGV[1]), user_id = uid, at = ts}))
return 1
`)

// refreshSessionScript: KEYS = session. ARGV = ttl in milliseconds, expires_at.
// Returns 0 when the session is gone, so an expired session is never recreated.
var refreshSessionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[1], 'expires_at', ARGV[2])
return 1
`)
