package web

// indexHTML is the single-page chat UI. It keeps the session id in
// sessionStorage so a reload continues the same conversation.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>memchat</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 680px; margin: 2rem auto; padding: 0 1rem; }
  #log { border: 1px solid #ddd; border-radius: 8px; padding: 1rem; min-height: 320px; }
  .msg { margin: 0.5rem 0; white-space: pre-wrap; }
  .user { color: #0b5394; }
  .assistant { color: #222; }
  .clarify { color: #8a5a00; }
  form { display: flex; gap: 0.5rem; margin-top: 1rem; }
  input { flex: 1; padding: 0.5rem; border: 1px solid #ccc; border-radius: 6px; }
  button { padding: 0.5rem 1rem; }
</style>
</head>
<body>
<h1>memchat</h1>
<div id="log"></div>
<form id="form">
  <input id="input" autocomplete="off" placeholder="Type your message..." autofocus>
  <button>Send</button>
</form>
<script>
const log = document.getElementById('log');
const form = document.getElementById('form');
const input = document.getElementById('input');

function addLine(cls, text) {
  const div = document.createElement('div');
  div.className = 'msg ' + cls;
  div.textContent = text;
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
}

form.addEventListener('submit', async (e) => {
  e.preventDefault();
  const message = input.value.trim();
  if (!message) return;
  input.value = '';
  addLine('user', 'You: ' + message);

  const body = {
    session_id: sessionStorage.getItem('memchat_session') || '',
    message: message,
  };
  try {
    const res = await fetch('/api/chat', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify(body),
    });
    if (!res.ok) {
      addLine('clarify', '[error] ' + await res.text());
      return;
    }
    const data = await res.json();
    sessionStorage.setItem('memchat_session', data.session_id);
    if (data.type === 'clarification') {
      addLine('clarify', 'Assistant needs clarification:\n' +
        data.content.map(q => '  - ' + q).join('\n'));
    } else {
      addLine('assistant', 'Assistant: ' + data.content);
    }
  } catch (err) {
    addLine('clarify', '[error] ' + err);
  }
});
</script>
</body>
</html>
`
