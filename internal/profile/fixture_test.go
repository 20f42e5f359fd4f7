package profile

const fixture = `%>>> header
%> name: Jane Doe
%> email: jane@example.com

% exps = \section{Experience}
% projs = \section{Projects}
% skills = \begin{skills}
% bogus = \section{Nope}

\def\eAcme{Acme, Engineer
%> role: Engineer|Lead
}

\def\eBeta{Beta, Intern}

\def\pVitae{Vitae renderer}

\def\sGo{Go, SQL}

`
