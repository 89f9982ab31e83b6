// Package scaffold generates the minimal companion application that a
// deploy-and-run build packages, so the resulting container serves HTTP on
// the requested port.
package scaffold

import (
	"fmt"
	"strings"
)

// BaseImage is the runtime image for the generated application.
const BaseImage = "node:18-alpine"

// File is one generated artifact.
type File struct {
	Name    string
	Content string
}

// Generate returns the application descriptor, the HTTP entry point and a
// Dockerfile that installs nothing, builds nothing and runs the entry point
// on port. Output depends only on port.
func Generate(port int) []File {
	return []File{
		{Name: "package.json", Content: packageJSON()},
		{Name: "server.js", Content: serverJS(port)},
		{Name: "Dockerfile", Content: dockerfile(port)},
	}
}

func packageJSON() string {
	return `{
  "name": "deployed-app",
  "version": "1.0.0",
  "description": "Generated by the deployment engine",
  "main": "server.js",
  "scripts": {
    "start": "node server.js"
  },
  "dependencies": {}
}
`
}

func serverJS(port int) string {
	return strings.ReplaceAll(`const http = require('http');

const port = parseInt(process.env.PORT || '{{PORT}}', 10);

const server = http.createServer((req, res) => {
  res.writeHead(200, { 'Content-Type': 'application/json' });
  res.end(JSON.stringify({
    status: 'ok',
    message: 'Container is running',
    path: req.url,
    port: port,
    timestamp: new Date().toISOString()
  }));
});

server.listen(port, '0.0.0.0', () => {
  console.log('Server listening on port ' + port);
});

process.on('SIGTERM', () => server.close(() => process.exit(0)));
`, "{{PORT}}", fmt.Sprint(port))
}

func dockerfile(port int) string {
	return fmt.Sprintf(`FROM %s
WORKDIR /app
COPY package.json server.js ./
ENV PORT=%d
EXPOSE %d
CMD ["node", "server.js"]
`, BaseImage, port, port)
}
